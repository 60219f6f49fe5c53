package spool

import (
	"context"

	"github.com/tech-arch1tect/datacollector-agent/config"
	"github.com/tech-arch1tect/datacollector-agent/internal/ingest"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"
	"github.com/tech-arch1tect/datacollector-agent/internal/websocket"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(NewWatcherFromConfig),
	fx.Invoke(RegisterLifecycle),
)

func NewWatcherFromConfig(cfg *config.Config, service *ingest.Service, hub *websocket.Hub, logger *logging.Logger) *Watcher {
	return NewWatcher(cfg.SpoolDir, service, hub, logger.With(zap.String("component", "spool")))
}

func RegisterLifecycle(lc fx.Lifecycle, cfg *config.Config, watcher *Watcher, logger *logging.Logger) {
	if !cfg.SpoolEnabled {
		logger.Debug("spool watcher disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return watcher.Start()
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			return nil
		},
	})
}
