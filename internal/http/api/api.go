// Package api assembles the users-api HTTP handler: routes, metrics
// endpoint, and instrumentation.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aanand-mishra/users-api/internal/http/handlers/user"
	"github.com/aanand-mishra/users-api/internal/http/middleware"
	"github.com/aanand-mishra/users-api/internal/storage"
)

// NewHandler returns the full service handler. Metrics are registered on
// reg and served at metricsPath unless it is empty.
func NewHandler(s storage.Storage, reg *prometheus.Registry, metricsPath string) http.Handler {
	router := http.NewServeMux()
	user.Register(router, s)

	metrics := middleware.NewMetrics(reg)
	if metricsPath != "" {
		router.Handle("GET "+metricsPath, metrics.Handler())
	}

	return metrics.Wrap(router)
}
