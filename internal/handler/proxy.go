package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"marklogic-admin-proxy/internal/metrics"
	"marklogic-admin-proxy/internal/model"
	"marklogic-admin-proxy/internal/resource"
	"marklogic-admin-proxy/internal/service"
)

// Forwarder is the part of *service.ProxyService the handler depends on.
type Forwarder interface {
	Forward(ctx context.Context, ep *resource.Endpoint, idOrName string, query url.Values) (*model.ProxyResponse, error)
}

// ProxyHandler serves every Management API endpoint from the resource table.
type ProxyHandler struct {
	service Forwarder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler.
// The metrics parameter is optional; pass nil to disable validation metrics.
func NewProxyHandler(svc Forwarder, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Endpoint returns the echo handler for ep.
func (h *ProxyHandler) Endpoint(ep *resource.Endpoint) echo.HandlerFunc {
	return func(c echo.Context) error {
		// echo routes on RawPath when set, leaving the param still escaped.
		// Otherwise it already came from the decoded Path.
		id := c.Param(resource.IDParam)
		if c.Request().URL.RawPath != "" {
			if u, err := url.PathUnescape(id); err == nil {
				id = u
			}
		}

		resp, err := h.service.Forward(c.Request().Context(), ep, id, c.QueryParams())
		if err != nil {
			return h.mapError(c, ep, err)
		}
		return c.Blob(resp.StatusCode, resp.ContentType, resp.Body)
	}
}

func (h *ProxyHandler) mapError(c echo.Context, ep *resource.Endpoint, err error) error {
	path := c.Request().URL.Path

	var ve *resource.ValidationError
	if errors.As(err, &ve) {
		h.logger.Info("rejected request", "endpoint", ep.Name(), "param", ve.Param, "err", ve.Message, "path", path)
		if h.metrics != nil {
			h.metrics.ValidationFailures.WithLabelValues(ep.Name(), ve.Param).Inc()
		}
		return errorJSON(c, http.StatusBadRequest, ve.Message)
	}

	var se *service.StatusError
	if errors.As(err, &se) {
		return errorJSON(c, se.StatusCode, se.Error())
	}

	if errors.Is(err, service.ErrEmptyResponse) {
		return errorJSON(c, http.StatusBadGateway, "No response from MarkLogic server")
	}

	var ue *service.UpstreamError
	if errors.As(err, &ue) {
		h.logger.Error("proxy error", "endpoint", ep.Name(), "err", ue.Err, "path", path)
		return errorJSON(c, http.StatusBadGateway, "Failed to proxy to MarkLogic: "+ue.Err.Error())
	}

	h.logger.Error("unexpected error", "endpoint", ep.Name(), "err", err, "path", path)
	return errorJSON(c, http.StatusInternalServerError, "Unexpected error: "+err.Error())
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
