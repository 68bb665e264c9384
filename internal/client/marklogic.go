// Package client provides the digest-authenticated HTTP client for the
// MarkLogic Management API.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/icholy/digest"
	"github.com/jpillora/backoff"

	"marklogic-admin-proxy/internal/config"
	"marklogic-admin-proxy/internal/metrics"
	"marklogic-admin-proxy/internal/model"
)

// ErrUnauthorized is returned by Warmup when MarkLogic rejects the configured
// credentials. Retrying will not help.
var ErrUnauthorized = errors.New("MarkLogic rejected credentials")

// MarkLogicClient sends requests to MarkLogic. Digest challenges are
// answered transparently by the transport.
type MarkLogicClient struct {
	httpClient *http.Client
	appURL     string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewMarkLogicClient creates a MarkLogicClient with connection pooling,
// timeouts and digest credentials from cfg.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewMarkLogicClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *MarkLogicClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	if cfg.Upstream.TLSSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed MarkLogic certs
	}

	ml := cfg.MarkLogic
	return &MarkLogicClient{
		httpClient: &http.Client{
			Transport: &digest.Transport{
				Username:  ml.Username,
				Password:  ml.Password,
				Transport: transport,
			},
			Timeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		appURL:  ml.Scheme + "://" + net.JoinHostPort(ml.Host, strconv.Itoa(ml.Port)) + "/",
		logger:  logger.With("component", "marklogic_client"),
		metrics: m,
	}
}

// Do executes req for the named endpoint and reads the whole body.
// A non-2xx status is not an error; only transport failures are.
func (c *MarkLogicClient) Do(endpoint string, req *http.Request) (*model.UpstreamResponse, error) {
	c.logger.Debug("upstream request",
		"endpoint", endpoint,
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, start, "")
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	c.observe(endpoint, start, strconv.Itoa(resp.StatusCode))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &model.UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Warmup completes a digest handshake against the app server port so the
// first proxied request does not pay for the challenge round trip, and so
// bad credentials surface in the startup log.
func (c *MarkLogicClient) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.appURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build warmup request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("warmup: %w (status %d)", ErrUnauthorized, resp.StatusCode)
	}
	return nil
}

// WarmupRetry calls Warmup up to attempts times with jittered exponential
// backoff between tries. It gives up early on ErrUnauthorized or when ctx ends.
func (c *MarkLogicClient) WarmupRetry(ctx context.Context, attempts int, b *backoff.Backoff) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = c.Warmup(ctx); err == nil || errors.Is(err, ErrUnauthorized) {
			return err
		}
		if i == attempts {
			break
		}

		wait := b.Duration()
		c.logger.Warn("MarkLogic not reachable, retrying",
			"err", err,
			"attempt", i,
			"max", attempts,
			"wait_secs", wait.Seconds(),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("warmup failed after %d attempts: %w", attempts, err)
}

func (c *MarkLogicClient) observe(endpoint string, start time.Time, status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues(endpoint, status).Inc()
	}
}
