package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"fca-register-proxy/internal/client"
	"fca-register-proxy/internal/config"
	"fca-register-proxy/internal/handler"
	"fca-register-proxy/internal/metrics"
	"fca-register-proxy/internal/middleware"
	"fca-register-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("fca-proxy"),
		kong.Description("CORS relay for the FCA Register API."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			newAdminServer,
			client.NewRegisterClient,
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewAdminHandler,
		),
		fx.Invoke(handler.RegisterRoutes, registerAdminRoutes, logConfigSource, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newMetrics returns nil when metrics are disabled; every consumer accepts nil.
func newMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	// Inbound timeouts to mitigate slow-client attacks. Responses are
	// buffered, so a write deadline above the upstream timeout is safe.
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second + 30*time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	// CORS first so every response, including recovered panics, carries it.
	e.Use(middleware.CORS())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.SecurityHeaders())

	if m != nil {
		e.Use(middleware.MetricsMiddleware(m))
	}

	return e
}

// adminServer is the listener for health, status and metrics. It is nil when
// [admin] is disabled.
type adminServer struct {
	*echo.Echo
}

func newAdminServer(cfg *config.Config, logger *slog.Logger) *adminServer {
	if !cfg.Admin.Enabled {
		return nil
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 5 * time.Second

	e.Use(echomw.Recover())

	return &adminServer{Echo: e}
}

func registerAdminRoutes(a *adminServer, cfg *config.Config, m *metrics.Metrics, h *handler.AdminHandler) {
	if a == nil {
		return
	}
	handler.RegisterAdminRoutes(a.Echo, cfg, m, h)
}

func logConfigSource(cfg *config.Config, logger *slog.Logger) {
	if cfg.FilePath() == "" {
		logger.Info("no config file found; using defaults and environment")
		return
	}
	logger.Info("loaded config", "path", cfg.FilePath())
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, admin *adminServer, cfg *config.Config, logger *slog.Logger) {
	serve(lc, e, cfg.Server.Addr(), logger.With("listener", "proxy"),
		"upstream", cfg.Upstream.BaseURL,
		"version", version,
	)

	if admin != nil {
		attrs := []any{"metrics", cfg.Metrics.Enabled}
		if cfg.Metrics.Enabled {
			attrs = append(attrs, "metrics_path", cfg.Metrics.Path)
		}
		serve(lc, admin.Echo, cfg.Admin.Addr(), logger.With("listener", "admin"), attrs...)
	}
}

// serve binds addr on start and shuts e down gracefully on stop.
func serve(lc fx.Lifecycle, e *echo.Echo, addr string, logger *slog.Logger, attrs ...any) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", append([]any{"addr", addr}, attrs...)...)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
