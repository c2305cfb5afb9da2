// Package httpserver builds the process's operational HTTP surface: liveness,
// readiness and Prometheus metrics. The membership components have no public
// HTTP API of their own.
package httpserver

import (
	"net/http"
	"time"

	"healthtrack/internal/platform/config"
)

// headerTimeout is not configurable.
const headerTimeout = 5 * time.Second

// New builds the ops server from the [server] section. Zero timeouts fall
// back to config.Default.
func New(cfg config.Server, handler http.Handler) *http.Server {
	defaults := config.Default().Server
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: headerTimeout,
		ReadTimeout:       orDefault(cfg.ReadTimeout, defaults.ReadTimeout),
		WriteTimeout:      orDefault(cfg.WriteTimeout, defaults.WriteTimeout),
		IdleTimeout:       orDefault(cfg.IdleTimeout, defaults.IdleTimeout),
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
