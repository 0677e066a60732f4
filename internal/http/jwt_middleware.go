package http

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-auth/internal/domain"
	"identity-auth/internal/repository"
	"identity-auth/internal/service"
)

const (
	bearerPrefix = "Bearer "
	principalKey = "principal"
)

// AuthenticationFilter resuelve el principal a partir del bearer token.
// Nunca responde: si algo falla sigue sin principal y la autorización decide.
func AuthenticationFilter(tokens *service.JWTService, users repository.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.Next()
			return
		}
		token := strings.TrimSpace(header[len(bearerPrefix):])
		if token == "" {
			c.Next()
			return
		}
		if _, ok := domain.PrincipalFrom(c.Request.Context()); ok {
			c.Next()
			return
		}

		subject, err := tokens.ExtractSubject(token)
		if err != nil {
			logger.Debug("bearer token rejected", zap.Error(err), zap.String("request_id", requestID(c)))
			c.Next()
			return
		}
		id, err := strconv.ParseInt(subject, 10, 64)
		if err != nil {
			logger.Debug("bearer token subject is not numeric", zap.String("subject", subject))
			c.Next()
			return
		}
		user, err := users.FindByID(c.Request.Context(), id)
		if err != nil {
			logger.Debug("bearer token user not loaded", zap.Int64("user_id", id), zap.Error(err))
			c.Next()
			return
		}

		principal := domain.PrincipalFromUser(user)
		if !tokens.Validate(token, &principal) {
			c.Next()
			return
		}
		if !user.Enabled {
			logger.Debug("bearer token for disabled user", zap.Int64("user_id", id))
			c.Next()
			return
		}

		c.Set(principalKey, principal)
		c.Request = c.Request.WithContext(domain.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// GetPrincipal obtiene el principal autenticado del contexto de gin.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := val.(domain.Principal)
	return p, ok
}
