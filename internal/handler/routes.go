package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fca-register-proxy/internal/config"
	"fca-register-proxy/internal/metrics"
)

// RegisterRoutes wires the proxy listener. Every path is relayed; the target
// comes from ?path= and the request path is ignored.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler) {
	e.Any("/*", proxy.Handle)
}

// RegisterAdminRoutes wires the admin listener: liveness, status and, when
// enabled, the Prometheus endpoint. m may be nil when metrics are disabled.
func RegisterAdminRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, admin *AdminHandler) {
	e.GET("/healthz", admin.Healthz)
	e.GET("/status", admin.Status)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
