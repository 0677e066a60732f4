package http

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-auth/internal/service"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger *zap.Logger
	users  *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, users *service.UserService) *UserHandler {
	return &UserHandler{
		logger: logger,
		users:  users,
	}
}

type updateUserRequest struct {
	Username string `json:"username" binding:"omitempty,excludes=@"`
	Email    string `json:"email" binding:"omitempty,email"`
}

func (r updateUserRequest) input() service.UpdateInput {
	return service.UpdateInput{Username: r.Username, Email: r.Email}
}

// List maneja GET /api/users?page=0&size=10.
func (h *UserHandler) List(c *gin.Context) {
	pageNo, pageSize, err := pageParams(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	page, err := h.users.List(c.Request.Context(), pageNo, pageSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "Users retrieved successfully", page)
}

// Get maneja GET /api/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "User retrieved successfully", user)
}

// Update maneja PUT /api/users/:id.
func (h *UserHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.users.Update(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "User updated successfully", user)
}

// Delete maneja DELETE /api/users/:id.
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "User deleted successfully", nil)
}

// Disable maneja PATCH /api/users/:id/disable.
func (h *UserHandler) Disable(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.users.Disable(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "User disabled successfully", user)
}

// Enable maneja PATCH /api/users/:id/enable.
func (h *UserHandler) Enable(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.users.Enable(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "User enabled successfully", user)
}

// Me maneja GET /api/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Me(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "Current user retrieved successfully", user)
}

// UpdateMe maneja PUT y PATCH /api/users/me; ambos ignoran campos vacíos.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.users.UpdateMe(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "Profile updated successfully", user)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.Validation("Validation failed", map[string]string{name: name + " must be a positive integer"})
	}
	return id, nil
}

func pageParams(c *gin.Context) (int, int, error) {
	fields := map[string]string{}
	pageNo, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || pageNo < 0 {
		fields["page"] = "page must be a non-negative integer"
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		fields["size"] = "size must be between 1 and " + strconv.Itoa(maxPageSize)
	}
	// page*size tiene que caber en el OFFSET
	if len(fields) == 0 && pageNo > math.MaxInt/pageSize {
		fields["page"] = "page is out of range"
	}
	if len(fields) > 0 {
		return 0, 0, service.Validation("Validation failed", fields)
	}
	return pageNo, pageSize, nil
}
