package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type WorkspaceInfo interface {
	WorkspaceID() string
	URL() string
}

type Handler struct {
	workspace WorkspaceInfo
}

func NewHandler(workspace WorkspaceInfo) *Handler {
	return &Handler{workspace: workspace}
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "healthy",
		"workspace_id": h.workspace.WorkspaceID(),
		"endpoint":     h.workspace.URL(),
	})
}
