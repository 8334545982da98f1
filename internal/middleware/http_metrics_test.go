package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/auth/register", "/auth/register"},
		{"/auth/login", "/auth/login"},
		{"/user/location", "/user/location"},
		{"/connections", "/connections"},
		{"/upload", "/upload"},
		{"/geocode", "/geocode"},
		{"/geocode/progress", "/geocode/progress"},
		{"/connections/3f2c9a10-1b2d-4e5f-8a9b-0c1d2e3f4a5b", "/connections/{id}"},
		{"/connections/123", "/connections/{id}"},
		{"/unknown/route", "/unknown/route"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"count":2,"skipped":1}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("csv body"))
	req.Header.Set("Content-Length", "8")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	total := findMetricFamily(families, MetricHTTPRequestsTotal)
	if total == nil {
		t.Fatalf("expected %s to be recorded", MetricHTTPRequestsTotal)
	}

	m := total.GetMetric()[0]
	labels := map[string]string{}
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["method"] != "POST" || labels["path"] != "/upload" || labels["status"] != "201" {
		t.Errorf("unexpected labels: %v", labels)
	}
	if m.GetCounter().GetValue() != 1 {
		t.Errorf("expected counter 1, got %v", m.GetCounter().GetValue())
	}
}

func TestHTTPMetrics_ExcludesHealthEndpoints(t *testing.T) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if fam := findMetricFamily(families, MetricHTTPRequestsTotal); fam != nil && len(fam.GetMetric()) > 0 {
		t.Error("health endpoints should not be recorded in metrics")
	}
}

func TestHTTPMetrics_NormalizesDynamicPaths(t *testing.T) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Two different IDs collapse into one label value.
	for _, path := range []string{"/connections/abc", "/connections/def"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, path, nil))
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	fam := findMetricFamily(families, MetricHTTPRequestsTotal)
	if fam == nil {
		t.Fatal("expected requests to be recorded")
	}
	if len(fam.GetMetric()) != 1 {
		t.Fatalf("expected a single label set, got %d", len(fam.GetMetric()))
	}
	if fam.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Errorf("expected counter 2, got %v", fam.GetMetric()[0].GetCounter().GetValue())
	}
}

func findMetricFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, fam := range families {
		if fam.GetName() == name {
			return fam
		}
	}
	return nil
}
