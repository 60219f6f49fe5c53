package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/tech-arch1tect/datacollector-agent/internal/audit"
	"github.com/tech-arch1tect/datacollector-agent/internal/common"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenMiddleware guards the relay API with a static bearer token. Rejected
// requests are written to auditService when it is non-nil.
func TokenMiddleware(accessToken string, logger *logging.Logger, auditService *audit.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, reason := CheckBearer(c.Request().Header.Get("Authorization"), accessToken)
			if reason != "" {
				SetAuthFailure(c, reason)
				logger.Warn("authentication failed",
					zap.String("source_ip", c.RealIP()),
					zap.String("reason", reason),
					zap.String("token_hash", HashToken(token)))
				if auditService != nil {
					auditService.Log(audit.AuditEvent{
						EventType:     audit.EventAuthFailure,
						RequestID:     logging.RequestID(c),
						Source:        "http",
						ClientIP:      c.RealIP(),
						FailureReason: reason,
						Metadata: map[string]any{
							"path":       c.Request().URL.Path,
							"token_hash": HashToken(token),
						},
					})
				}
				if accessToken == "" {
					return common.SendInternalError(c, reason)
				}
				return common.SendUnauthorized(c, reason)
			}

			SetAuthSuccess(c, token)
			logger.Debug("authentication successful",
				zap.String("source_ip", c.RealIP()),
				zap.String("token_hash", HashToken(token)))
			return next(c)
		}
	}
}

// CheckBearer extracts the bearer token from header and compares it against
// accessToken. A non-empty reason means the request must be rejected.
func CheckBearer(header, accessToken string) (token string, reason string) {
	if accessToken == "" {
		return "", "Access token not configured"
	}
	if header == "" {
		return "", "Authorization header required"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "Bearer token required"
	}

	token = strings.TrimPrefix(header, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(accessToken)) != 1 {
		return token, "Invalid token"
	}
	return token, ""
}

func SetAuthSuccess(c echo.Context, token string) {
	c.Set(logging.AuthStatusContextKey, logging.AuthStatusSuccess)
	if token != "" {
		c.Set(logging.AuthTokenHashContextKey, HashToken(token))
	}
}

func SetAuthFailure(c echo.Context, reason string) {
	c.Set(logging.AuthStatusContextKey, logging.AuthStatusFailed)
	c.Set(logging.AuthErrorContextKey, reason)
}

func HashToken(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])[:16]
}
