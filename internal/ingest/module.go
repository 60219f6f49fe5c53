package ingest

import (
	"github.com/tech-arch1tect/datacollector-agent/internal/audit"
	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"
	"github.com/tech-arch1tect/datacollector-agent/internal/websocket"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(func(client *datacollector.Client, auditService *audit.Service, hub *websocket.Hub, logger *logging.Logger) *Service {
		return NewService(client, auditService, hub, logger.With(zap.String("component", "ingest")))
	}),
	fx.Provide(NewHandler),
)
