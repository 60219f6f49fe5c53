package datacollector

import (
	"github.com/tech-arch1tect/datacollector-agent/config"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewClientFromConfig(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	clientConfig := DefaultConfig().
		WithProxies(cfg.Proxies()).
		WithTimeout(cfg.RequestTimeout()).
		WithDomain(cfg.DataCollectorDomain).
		WithEndpoint(cfg.DataCollectorEndpoint)

	client, err := NewClient(cfg.WorkspaceID, cfg.SharedKey,
		WithConfig(clientConfig),
		WithLogger(logger.With(zap.String("component", "datacollector")).GetZap()),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("data collector client initialized",
		zap.String("workspace_id", client.WorkspaceID()),
		zap.String("url", client.URL()),
		zap.Duration("timeout", clientConfig.Timeout()),
		zap.Int("proxies", len(clientConfig.Proxies())),
	)

	return client, nil
}

var Module = fx.Options(
	fx.Provide(NewClientFromConfig),
)
