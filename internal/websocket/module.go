package websocket

import (
	"context"

	"github.com/tech-arch1tect/datacollector-agent/config"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(func(logger *logging.Logger) *Hub {
		return NewHub(logger.With(zap.String("component", "websocket")))
	}),
	fx.Provide(func(hub *Hub, cfg *config.Config) *Handler {
		return NewHandler(hub, cfg.AccessToken)
	}),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, hub *Hub) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go hub.Run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.Stop()
			return nil
		},
	})
}
