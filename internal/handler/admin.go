package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"fca-register-proxy/internal/config"
	"fca-register-proxy/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// statusBody describes what the relay forwards to and how it is observed.
type statusBody struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Upstream       string `json:"upstream"`
	ServicePrefix  string `json:"service_prefix"`
	Listen         string `json:"listen"`
	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path,omitempty"`
}

// AdminHandler serves the admin listener's liveness and status endpoints.
// They live off the proxy port, which relays every path.
type AdminHandler struct {
	status statusBody
}

// NewAdminHandler creates an AdminHandler. The status document is fixed at
// startup since nothing it reports changes at runtime.
func NewAdminHandler(cfg *config.Config, svc *service.ProxyService, v Version) *AdminHandler {
	st := statusBody{
		Status:         "ok",
		Version:        string(v),
		Upstream:       svc.UpstreamBase(),
		ServicePrefix:  service.ServicePrefix,
		Listen:         cfg.Server.Addr(),
		MetricsEnabled: cfg.Metrics.Enabled,
	}
	if cfg.Metrics.Enabled {
		st.MetricsPath = cfg.Metrics.Path
	}
	return &AdminHandler{status: st}
}

// Healthz answers liveness checks.
func (h *AdminHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the forwarding target and build.
func (h *AdminHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.status)
}
