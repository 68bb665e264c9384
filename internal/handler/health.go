package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"marklogic-admin-proxy/internal/config"
	"marklogic-admin-proxy/internal/resource"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// StatusResponse is the body of /proxy/status.
type StatusResponse struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	UpstreamURL string   `json:"upstream_url"`
	Routes      []string `json:"routes"`
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	eps := resource.Endpoints()
	routes := make([]string, 0, len(eps))
	for _, ep := range eps {
		routes = append(routes, ep.Route())
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Status:      "ok",
		Version:     string(h.version),
		UpstreamURL: h.cfg.MarkLogic.ManageBaseURL(),
		Routes:      routes,
	})
}
