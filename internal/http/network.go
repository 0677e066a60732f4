package http

import (
	"net/netip"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-auth/internal/service"
)

// trustedNetworkMiddleware solo deja pasar peers dentro de allowed. Usa la
// dirección de la conexión, no X-Forwarded-For.
func trustedNetworkMiddleware(allowed []netip.Prefix, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, err := netip.ParseAddr(c.RemoteIP())
		if err == nil {
			addr = addr.Unmap()
			for _, p := range allowed {
				if p.Contains(addr) {
					c.Next()
					return
				}
			}
		}
		logger.Warn("internal call from untrusted network",
			zap.String("remote_ip", c.RemoteIP()),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, logger, service.Forbidden("Access denied"))
	}
}
