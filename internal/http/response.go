package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-auth/internal/hrsink"
	"identity-auth/internal/service"
)

// apiResponse es el sobre común de todas las respuestas JSON.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, apiResponse{Success: true, Message: message, Data: data})
}

// respondError es el único punto que traduce errores de servicio a HTTP.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	svcErr := asServiceError(err)
	status := svcErr.HTTPStatus()

	message := svcErr.Message
	switch svcErr.Kind {
	case service.KindInternal:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
		message = service.MsgInternal
	case service.KindExternal:
		message = "External service error: " + svcErr.Message
	}

	body := apiResponse{Success: false, Message: message}
	if len(svcErr.Fields) > 0 {
		body.Data = svcErr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

func asServiceError(err error) *service.Error {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	var hrErr *hrsink.StatusError
	if errors.As(err, &hrErr) {
		return service.External(hrErr.StatusCode, hrErr.Body, err)
	}
	return service.Internal(err)
}

func notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, apiResponse{Success: false, Message: "Resource not found"})
}

func methodNotAllowedHandler(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, apiResponse{Success: false, Message: "Method not allowed"})
}
