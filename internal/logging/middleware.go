package logging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	AuthStatusSuccess       = "success"
	AuthStatusFailed        = "failed"
	AuthStatusNone          = "none"
	RequestIDHeader         = "X-Request-ID"
	RequestIDContextKey     = "request_id"
	AuthStatusContextKey    = "auth_status"
	AuthErrorContextKey     = "auth_error"
	AuthTokenHashContextKey = "auth_token_hash"
	RecordCountContextKey   = "record_count"
)

// RequestLoggingMiddleware assigns every request an X-Request-ID and writes one
// structured line per request once the handler has returned.
func RequestLoggingMiddleware(logger *Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			requestID := req.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
				req.Header.Set(RequestIDHeader, requestID)
			}
			c.Response().Header().Set(RequestIDHeader, requestID)
			c.Set(RequestIDContextKey, requestID)

			err := next(c)

			if !shouldLogRequest(req.URL.Path) {
				return err
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("source_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
				zap.Int64("response_size", c.Response().Size),
				zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
				zap.String("auth_status", authStatus(c)),
			}

			if logType := c.Param("logType"); logType != "" {
				fields = append(fields, zap.String("log_type", logType))
			}
			if count, ok := c.Get(RecordCountContextKey).(int); ok {
				fields = append(fields, zap.Int("records", count))
			}
			if authError, ok := c.Get(AuthErrorContextKey).(string); ok {
				fields = append(fields, zap.String("auth_error", authError))
			}
			if tokenHash, ok := c.Get(AuthTokenHashContextKey).(string); ok {
				fields = append(fields, zap.String("auth_token_hash", tokenHash))
			}

			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					fields = append(fields, zap.String("error", fmt.Sprintf("%v", he.Message)))
					if status == 0 || status == 200 {
						status = he.Code
					}
				} else {
					fields = append(fields, zap.Error(err))
				}
			}
			fields = append(fields, zap.Int("status_code", status))

			switch {
			case status >= 500:
				logger.Error("request completed", fields...)
			case status >= 400:
				logger.Warn("request completed", fields...)
			default:
				logger.Info("request completed", fields...)
			}

			return err
		}
	}
}

func shouldLogRequest(path string) bool {
	return path != "/health" && path != "/api/health"
}

func authStatus(c echo.Context) string {
	if status, ok := c.Get(AuthStatusContextKey).(string); ok {
		return status
	}
	return AuthStatusNone
}

// RequestID returns the id assigned by RequestLoggingMiddleware, if any.
func RequestID(c echo.Context) string {
	if id, ok := c.Get(RequestIDContextKey).(string); ok {
		return id
	}
	return c.Request().Header.Get(RequestIDHeader)
}
