package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"marklogic-admin-proxy/internal/metrics"
)

// findRequestsTotal returns the requests_total sample whose labels include
// all of want, or nil.
func findRequestsTotal(t *testing.T, m *metrics.Metrics, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "marklogic_proxy_http_requests_total" {
			continue
		}
	next:
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return metric
		}
	}
	return nil
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/manage/v2/databases/:idOrName/properties", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/manage/v2/databases/Documents/properties", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	metric := findRequestsTotal(t, m, map[string]string{"path_prefix": "/manage/v2/databases", "status_code": "200"})
	if metric == nil {
		t.Fatal("expected marklogic_proxy_http_requests_total with path_prefix=/manage/v2/databases")
	}
	if v := metric.GetCounter().GetValue(); v != 1 {
		t.Errorf("counter value = %v, want 1", v)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "marklogic_proxy_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected marklogic_proxy_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_StatusResolution(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		want    string
	}{
		{
			name:    "written error envelope",
			handler: func(c echo.Context) error { return c.JSON(http.StatusBadRequest, map[string]string{"error": "x"}) },
			want:    "400",
		},
		{
			name:    "returned HTTPError",
			handler: func(echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "not found") },
			want:    "404",
		},
		{
			name:    "returned plain error",
			handler: func(echo.Context) error { return errors.New("boom") },
			want:    "500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			e := echo.New()
			e.Use(MetricsMiddleware(m))
			e.GET("/manage/v2/hosts", tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/manage/v2/hosts", http.NoBody)
			e.ServeHTTP(httptest.NewRecorder(), req)

			if findRequestsTotal(t, m, map[string]string{"path_prefix": "/manage/v2/hosts", "status_code": tt.want}) == nil {
				t.Errorf("expected requests_total with status_code=%s", tt.want)
			}
		})
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/manage/v2/logs", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("XYZZY", "/manage/v2/logs", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if findRequestsTotal(t, m, map[string]string{"path_prefix": "/manage/v2/logs", "method": "other"}) == nil {
		t.Error("expected marklogic_proxy_http_requests_total with path_prefix=/manage/v2/logs and method=other")
	}
}

func TestMetricsMiddleware_RouterNotFound(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	want := map[string]string{"path_prefix": "other", "method": "GET", "status_code": "404"}
	if findRequestsTotal(t, m, want) == nil {
		t.Error("expected marklogic_proxy_http_requests_total with path_prefix=other, method=GET, status_code=404")
	}
}
