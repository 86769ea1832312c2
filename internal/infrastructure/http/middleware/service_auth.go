package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	ContextKeyServiceName = "service_name"
	HeaderServiceToken    = "X-Service-Token"
)

// TokenValidator returns the service name carried by a valid token.
type TokenValidator interface {
	ValidateServiceToken(token string) (string, error)
}

type ServiceAuthMiddleware struct {
	validator TokenValidator
}

func NewServiceAuthMiddleware(validator TokenValidator) *ServiceAuthMiddleware {
	return &ServiceAuthMiddleware{validator: validator}
}

func (m *ServiceAuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderServiceToken)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing_token",
			})
			return
		}

		serviceName, err := m.validator.ValidateServiceToken(token)
		if err != nil {
			slog.Debug("service token rejected", "error", err, "client_ip", c.ClientIP())
			code := "invalid_token"
			if errors.Is(err, domain.ErrTokenExpired) {
				code = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": code,
			})
			return
		}

		c.Set(ContextKeyServiceName, serviceName)
		c.Next()
	}
}
