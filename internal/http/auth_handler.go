package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-auth/internal/service"
)

// AuthHandler atiende registro, login y restablecimiento de contraseña.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
	reset  *service.ResetService
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, reset *service.ResetService) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		auth:   auth,
		reset:  reset,
	}
}

// Register maneja POST /api/users/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username  string `json:"username" binding:"required,excludes=@"`
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required,min=8,max=72"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, "User registered successfully", user)
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		UsernameOrEmail string `json:"usernameOrEmail" binding:"required"`
		Password        string `json:"password" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "Login successful", res)
}

// ForgotPassword maneja POST /api/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "OTP sent to your email", nil)
}

// ValidateOTP maneja POST /api/auth/validate-otp. No consume el código.
func (h *AuthHandler) ValidateOTP(c *gin.Context) {
	var req struct {
		Email   string `json:"email" binding:"required,email"`
		OtpCode string `json:"otpCode" binding:"required,len=6,numeric"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.reset.Validate(c.Request.Context(), req.Email, req.OtpCode); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "OTP is valid", nil)
}

// ResetPassword maneja POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		OtpCode     string `json:"otpCode" binding:"required,len=6,numeric"`
		NewPassword string `json:"newPassword" binding:"required,min=8,max=72"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.reset.Reset(c.Request.Context(), req.Email, req.OtpCode, req.NewPassword); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, "Password reset successful", nil)
}
