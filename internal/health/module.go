package health

import (
	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(func(client *datacollector.Client) *Handler {
		return NewHandler(client)
	}),
)
