package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/abduss/stopsurvey/internal/config"
	"github.com/abduss/stopsurvey/internal/objectstore"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func testConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{MaxUploadBytes: 1 << 20},
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
	}
}

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := NewRouter(Dependencies{
		Config: testConfig(),
		Checks: map[string]any{"store": objectstore.NewMemory("media"), "ledger": pinger{}},
	})
	rr := httptest.NewRecorder()
	ok.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	degraded := NewRouter(Dependencies{
		Config: testConfig(),
		Checks: map[string]any{"ledger": pinger{err: errors.New("sheets 503")}},
	})
	rr = httptest.NewRecorder()
	degraded.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestLivenessAndCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Dependencies{Config: testConfig()})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Fatalf("expected correlation id header")
	}
}
