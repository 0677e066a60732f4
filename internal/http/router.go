package http

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger comprueba la disponibilidad de la base de datos.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter configura el router público con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authn gin.HandlerFunc,
	authH *AuthHandler,
	userH *UserHandler,
	db Pinger,
) *gin.Engine {
	useJSONFieldNames()
	r := newEngine(logger)
	r.GET("/healthz", healthHandler(db))

	api := r.Group("/api", authn)
	guard := func(op Operation) gin.HandlerFunc { return RequireAuthority(op, logger) }

	api.POST("/users/register", guard(OpRegister), authH.Register)

	auth := api.Group("/auth")
	auth.POST("/login", guard(OpLogin), authH.Login)
	auth.POST("/forgot-password", guard(OpForgotPassword), authH.ForgotPassword)
	auth.POST("/validate-otp", guard(OpValidateOTP), authH.ValidateOTP)
	auth.POST("/reset-password", guard(OpResetPassword), authH.ResetPassword)

	users := api.Group("/users")
	users.GET("/me", guard(OpGetSelf), userH.Me)
	users.PUT("/me", guard(OpUpdateSelf), userH.UpdateMe)
	users.PATCH("/me", guard(OpPatchSelf), userH.UpdateMe)

	users.GET("", guard(OpListUsers), userH.List)
	users.GET("/:id", guard(OpGetUser), userH.Get)
	users.PUT("/:id", guard(OpUpdateUser), userH.Update)
	users.DELETE("/:id", guard(OpDeleteUser), userH.Delete)
	users.PATCH("/:id/disable", guard(OpDisableUser), userH.Disable)
	users.PATCH("/:id/enable", guard(OpEnableUser), userH.Enable)

	return r
}

// NewInternalRouter expone las rutas para RRHH. Se sirve en un listener
// aparte y además filtra por red de origen.
func NewInternalRouter(logger *zap.Logger, internalH *InternalHandler, allowed []netip.Prefix) *gin.Engine {
	useJSONFieldNames()
	r := newEngine(logger)

	internal := r.Group("/api/internal", trustedNetworkMiddleware(allowed, logger))
	internal.PATCH("/users/:userId/email", internalH.UpdateEmail)
	internal.PATCH("/users/:userId/status", internalH.UpdateStatus)

	return r
}

func newEngine(logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Middlewares basicos: request id, logging, recovery y JSON content-type.
	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), recoveryMiddleware(logger), jsonContentTypeMiddleware())
	r.NoRoute(notFoundHandler)
	r.NoMethod(methodNotAllowedHandler)
	return r
}

func healthHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, apiResponse{Success: false, Message: "database unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok"})
	}
}
