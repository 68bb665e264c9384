// Package service implements the core proxy forwarding logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"marklogic-admin-proxy/internal/config"
	"marklogic-admin-proxy/internal/model"
	"marklogic-admin-proxy/internal/resource"
)

// ErrEmptyResponse is returned when MarkLogic answers 2xx with no body.
var ErrEmptyResponse = errors.New("empty response from MarkLogic")

// UpstreamError wraps a transport-level failure talking to MarkLogic.
type UpstreamError struct {
	Endpoint string
	Err      error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx upstream status on an endpoint whose
// policy is to replace the body with an error envelope.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("MarkLogic returned status: %d", e.StatusCode)
}

// defaultEchoedContentType labels echo-policy responses lacking a Content-Type.
const defaultEchoedContentType = "application/json"

const userAgent = "marklogic-admin-proxy/1.0"

// Doer performs one upstream call. *client.MarkLogicClient satisfies it.
type Doer interface {
	Do(endpoint string, req *http.Request) (*model.UpstreamResponse, error)
}

// ProxyService validates, forwards and translates Management API requests.
type ProxyService struct {
	client  Doer
	logger  *slog.Logger
	baseURL *url.URL
}

// NewProxyService creates a ProxyService targeting the configured
// Management API port.
func NewProxyService(c Doer, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	u, err := url.Parse(cfg.MarkLogic.ManageBaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse management base url: %w", err)
	}

	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		baseURL: u,
	}, nil
}

// BaseURL returns the Management API root requests are sent to.
func (s *ProxyService) BaseURL() string {
	return s.baseURL.String()
}

// Forward validates idOrName and query against ep, sends one GET to MarkLogic and maps
// the outcome onto a ProxyResponse. Errors are one of *resource.ValidationError,
// *StatusError, *UpstreamError, ErrEmptyResponse, or an unclassified error.
func (s *ProxyService) Forward(ctx context.Context, ep *resource.Endpoint, idOrName string, query url.Values) (*model.ProxyResponse, error) {
	if err := ep.ValidateID(idOrName); err != nil {
		return nil, err
	}

	v, err := ep.Validate(query)
	if err != nil {
		return nil, err
	}

	pr := &model.ProxyRequest{
		Ctx:    ctx,
		Path:   ep.UpstreamPath(idOrName),
		Query:  v.Query,
		Accept: v.Format.MediaType(),
	}

	req, err := s.newRequest(pr)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("forwarding request",
		"endpoint", ep.Name(),
		"path", pr.Path,
		"query", req.URL.RawQuery,
	)

	up, err := s.client.Do(ep.Name(), req)
	if err != nil {
		return nil, &UpstreamError{Endpoint: ep.Name(), Err: err}
	}

	return s.translate(ep, v.Format, up)
}

func (s *ProxyService) newRequest(pr *model.ProxyRequest) (*http.Request, error) {
	req, err := http.NewRequestWithContext(pr.Ctx, http.MethodGet, s.buildUpstreamURL(pr), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if pr.Accept != "" {
		req.Header.Set("Accept", pr.Accept)
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// buildUpstreamURL joins the management root, the already-escaped
// endpoint path and the ordered query.
func (s *ProxyService) buildUpstreamURL(pr *model.ProxyRequest) string {
	u := *s.baseURL
	u.RawPath = pr.Path
	if p, err := url.PathUnescape(pr.Path); err == nil {
		u.Path = p
	} else {
		u.Path = pr.Path
	}
	u.RawQuery = model.EncodeQuery(pr.Query)
	return u.String()
}

// translate applies the endpoint's content-type and error policies.
func (s *ProxyService) translate(ep *resource.Endpoint, format resource.Format, up *model.UpstreamResponse) (*model.ProxyResponse, error) {
	if up.Successful() {
		if len(up.Body) == 0 {
			s.logger.Error("empty body from MarkLogic", "endpoint", ep.Name(), "status", up.StatusCode)
			return nil, ErrEmptyResponse
		}
		return &model.ProxyResponse{
			StatusCode:  up.StatusCode,
			ContentType: successContentType(ep, format, up),
			Body:        up.Body,
		}, nil
	}

	s.logger.Warn("MarkLogic returned error status",
		"endpoint", ep.Name(),
		"status", up.StatusCode,
		"body_bytes", len(up.Body),
	)

	switch ep.ErrorPolicy {
	case resource.ErrorPassthrough:
		return passthrough(up.StatusCode, format, up), nil
	case resource.ErrorPassthroughCollapsed:
		return passthrough(collapseStatus(up.StatusCode), format, up), nil
	default:
		return nil, &StatusError{Endpoint: ep.Name(), StatusCode: up.StatusCode}
	}
}

func successContentType(ep *resource.Endpoint, format resource.Format, up *model.UpstreamResponse) string {
	if ep.EchoContentType || format == "" {
		if up.ContentType != "" {
			return up.ContentType
		}
		return defaultEchoedContentType
	}
	return format.MediaType()
}

func passthrough(status int, format resource.Format, up *model.UpstreamResponse) *model.ProxyResponse {
	ct := up.ContentType
	if ct == "" {
		ct = format.MediaType()
	}
	if ct == "" {
		ct = "text/plain"
	}
	return &model.ProxyResponse{StatusCode: status, ContentType: ct, Body: up.Body}
}

// collapseStatus folds an upstream error status into 400, 401, 404 or 500.
func collapseStatus(code int) int {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		return code
	default:
		return http.StatusInternalServerError
	}
}
