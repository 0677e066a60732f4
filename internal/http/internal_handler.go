package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-auth/internal/service"
)

// InternalHandler expone las actualizaciones que llegan desde RRHH.
type InternalHandler struct {
	logger *zap.Logger
	users  *service.UserService
}

func NewInternalHandler(logger *zap.Logger, users *service.UserService) *InternalHandler {
	return &InternalHandler{logger: logger, users: users}
}

// UpdateEmail maneja PATCH /api/internal/users/:userId/email?email=.
func (h *InternalHandler) UpdateEmail(c *gin.Context) {
	id, err := pathID(c, "userId")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.users.UpdateEmailInternal(c.Request.Context(), id, c.Query("email")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateStatus maneja PATCH /api/internal/users/:userId/status?enabled=.
func (h *InternalHandler) UpdateStatus(c *gin.Context) {
	id, err := pathID(c, "userId")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	enabled, err := strconv.ParseBool(c.Query("enabled"))
	if err != nil {
		respondError(c, h.logger, service.Validation("Validation failed", map[string]string{"enabled": "enabled must be true or false"}))
		return
	}
	if err := h.users.UpdateStatusInternal(c.Request.Context(), id, enabled); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
