// Package router assembles the operational HTTP surface of the worker:
// liveness, readiness and metrics.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-core/internal/config"
	promhandler "github.com/jwalitptl/hospital-core/internal/handler/prometheus"
	"github.com/jwalitptl/hospital-core/internal/middleware"
	"github.com/jwalitptl/hospital-core/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine *gin.Engine
	cfg    config.OpsConfig
	logger *logger.Logger
}

func NewRouter(cfg config.OpsConfig, healthH Handler, metricsH *promhandler.Handler, log *logger.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.RequestLogger(log), middleware.Recovery(log))

	healthH.RegisterRoutes(&engine.RouterGroup)
	engine.GET(cfg.MetricsPath, metricsH.Handler())

	return &Router{engine: engine, cfg: cfg, logger: log}
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Serve listens on the ops port until ctx is done, then shuts down.
func (r *Router) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.Port),
		Handler:           r.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("Ops server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
