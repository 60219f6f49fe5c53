package websocket

import (
	"github.com/tech-arch1tect/datacollector-agent/internal/auth"
	"github.com/tech-arch1tect/datacollector-agent/internal/common"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	hub         *Hub
	accessToken string
}

func NewHandler(hub *Hub, accessToken string) *Handler {
	return &Handler{
		hub:         hub,
		accessToken: accessToken,
	}
}

func (h *Handler) HandleIngestWebSocket(c echo.Context) error {
	token, reason := auth.CheckBearer(c.Request().Header.Get("Authorization"), h.accessToken)
	if reason != "" {
		auth.SetAuthFailure(c, reason)
		return common.SendUnauthorized(c, reason)
	}

	auth.SetAuthSuccess(c, token)
	return h.hub.ServeWebSocket(c)
}
