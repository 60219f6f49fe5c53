package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/tech-arch1tect/datacollector-agent/config"
	"github.com/tech-arch1tect/datacollector-agent/internal/audit"
	"github.com/tech-arch1tect/datacollector-agent/internal/auth"
	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"
	"github.com/tech-arch1tect/datacollector-agent/internal/health"
	"github.com/tech-arch1tect/datacollector-agent/internal/ingest"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"
	"github.com/tech-arch1tect/datacollector-agent/internal/spool"
	"github.com/tech-arch1tect/datacollector-agent/internal/ssl"
	"github.com/tech-arch1tect/datacollector-agent/internal/websocket"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func runAgent() {
	fx.New(
		config.Module,
		logging.Module,
		datacollector.Module,
		audit.Module,
		websocket.Module,
		health.Module,
		ingest.Module,
		spool.Module,
		fx.Provide(NewEcho),
		fx.Invoke(RegisterRoutes),
		fx.Invoke(StartServer),
	).Run()
}

func NewEcho(logger *logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(logging.RequestLoggingMiddleware(logger.With(zap.String("component", "http"))))
	e.Use(echomiddleware.Recover())
	return e
}

func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	logger *logging.Logger,
	auditService *audit.Service,
	healthHandler *health.Handler,
	ingestHandler *ingest.Handler,
	wsHandler *websocket.Handler,
) {
	api := e.Group("/api")
	api.Use(auth.TokenMiddleware(cfg.AccessToken, logger.With(zap.String("component", "auth")), auditService))

	api.GET("/health", healthHandler.Health)
	api.POST("/logs/:logType", ingestHandler.PostLogs)

	e.GET("/ws/ingest/status", wsHandler.HandleIngestWebSocket)
}

func StartServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, e *echo.Echo, cfg *config.Config, logger *logging.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var certPath, keyPath string
			if cfg.TLSEnabled {
				var err error
				certPath, keyPath, err = ssl.NewCertificateManager(cfg.TLSCertDir, logger.With(zap.String("component", "ssl"))).EnsureCertificates()
				if err != nil {
					return err
				}
			}

			go func() {
				addr := ":" + cfg.Port
				logger.Info("starting server", zap.String("addr", addr), zap.Bool("tls", cfg.TLSEnabled))

				var err error
				if cfg.TLSEnabled {
					err = e.StartTLS(addr, certPath, keyPath)
				} else {
					err = e.Start(addr)
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}
