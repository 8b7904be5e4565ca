package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/hospital-core/internal/config"
	"github.com/jwalitptl/hospital-core/internal/handler/health"
	promhandler "github.com/jwalitptl/hospital-core/internal/handler/prometheus"
	"github.com/jwalitptl/hospital-core/pkg/logger"
	"github.com/jwalitptl/hospital-core/pkg/metrics"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(db health.Pinger) *Router {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("hospital", reg)
	m.OutboxEventsProcessed.Inc()
	return NewRouter(
		config.OpsConfig{Port: 0, MetricsPath: "/metrics"},
		health.NewHandler(map[string]health.Pinger{"database": db}),
		promhandler.New(reg),
		logger.Nop(),
	)
}

func serve(r *Router, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.Engine().ServeHTTP(w, req)
	return w
}

func TestRouter_Liveness(t *testing.T) {
	r := newTestRouter(pingFunc(func(context.Context) error { return nil }))
	w := serve(r, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestRouter_ReadinessReportsDownDependency(t *testing.T) {
	r := newTestRouter(pingFunc(func(context.Context) error { return errors.New("connection refused") }))
	w := serve(r, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"DOWN","checks":{"database":"connection refused"}}`, w.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(pingFunc(func(context.Context) error { return nil }))
	w := serve(r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hospital_outbox_events_processed_total 1")
}
