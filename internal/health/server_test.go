package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/bulksms/internal/health"
)

func serve(t *testing.T, s *health.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthzAlwaysOK(t *testing.T) {
	s := health.NewServer(health.WithCheck("broken", func(context.Context) error {
		return errors.New("down")
	}))

	w := serve(t, s, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestReadyzReportsEveryCheck(t *testing.T) {
	s := health.NewServer(
		health.WithCheck("kafka", func(context.Context) error { return nil }),
		health.WithCheck("gateway", func(context.Context) error { return errors.New("no credentials") }),
	)

	w := serve(t, s, "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal readiness: %v", err)
	}
	if body.Status != "unavailable" {
		t.Fatalf("unexpected status %q", body.Status)
	}
	if body.Checks["kafka"] != "ok" || body.Checks["gateway"] != "no credentials" {
		t.Fatalf("unexpected checks: %v", body.Checks)
	}
}

func TestReadyzHonoursCheckTimeout(t *testing.T) {
	s := health.NewServer(
		health.WithCheckTimeout(10*time.Millisecond),
		health.WithCheck("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)

	w := serve(t, s, "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestReadyzWithoutChecks(t *testing.T) {
	w := serve(t, health.NewServer(), "/readyz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMetricsServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	w := serve(t, health.NewServer(health.WithGatherer(reg)), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "probe_test_total 1") {
		t.Fatalf("metrics output missing counter:\n%s", w.Body.String())
	}
}
