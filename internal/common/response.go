package common

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func SendSuccess(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

func SendAccepted(c echo.Context, data any) error {
	return c.JSON(http.StatusAccepted, data)
}

func SendError(c echo.Context, statusCode int, message string) error {
	return c.JSON(statusCode, map[string]string{
		"error": message,
	})
}

// SendUpstreamError relays a failed Data Collector response to the caller,
// keeping the upstream status so clients can branch on 400/403/429.
func SendUpstreamError(c echo.Context, statusCode int, code, message, body string) error {
	payload := map[string]any{
		"error":           message,
		"upstream_status": statusCode,
	}
	if code != "" {
		payload["upstream_code"] = code
	}
	if body != "" {
		payload["upstream_body"] = body
	}
	return c.JSON(statusCode, payload)
}

func SendBadRequest(c echo.Context, message string) error {
	return SendError(c, http.StatusBadRequest, message)
}

func SendUnauthorized(c echo.Context, message string) error {
	return SendError(c, http.StatusUnauthorized, message)
}

func SendBadGateway(c echo.Context, message string) error {
	return SendError(c, http.StatusBadGateway, message)
}

func SendGatewayTimeout(c echo.Context, message string) error {
	return SendError(c, http.StatusGatewayTimeout, message)
}

func SendInternalError(c echo.Context, message string) error {
	return SendError(c, http.StatusInternalServerError, message)
}
