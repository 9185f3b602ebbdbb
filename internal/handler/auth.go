package handler

import (
	"errors"
	"net/http"
	"strings"

	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler interface {
	Login(c *gin.Context)
	Refresh(c *gin.Context)
	ForgotPassword(c *gin.Context)
	ResetPassword(c *gin.Context)
}

type authHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) AuthHandler {
	return &authHandler{auth: auth, logger: logger}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *authHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}

	user, accessToken, refreshToken, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid username or password"})
			return
		}
		h.logger.Error("Failed to login user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "login successful",
		"token":         accessToken,
		"refresh_token": refreshToken,
		"user":          user.Public(),
	})
}

func (h *authHandler) Refresh(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

	accessToken, err := h.auth.Refresh(token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenMissing):
			c.JSON(http.StatusUnauthorized, gin.H{"message": "refresh token required"})
		case errors.Is(err, service.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"message": "refresh token expired"})
		case errors.Is(err, service.ErrTokenMalformed):
			c.JSON(http.StatusUnauthorized, gin.H{"message": "refresh token invalid"})
		default:
			h.logger.Error("Failed to refresh token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": accessToken})
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *authHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email is required"})
		return
	}

	if err := h.auth.RequestPasswordReset(req.Email); err != nil {
		if errors.Is(err, service.ErrMailSendFailed) {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "unable to send email, please try again later"})
			return
		}
		h.logger.Error("Failed to process password reset request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}

	// Identical response whether or not the email belongs to an account.
	c.JSON(http.StatusOK, gin.H{"message": "if the email exists, a password reset link has been sent"})
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *authHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "new password is required"})
		return
	}

	err := h.auth.ResetPassword(c.Param("token"), req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrResetTokenInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"message": "password reset token is invalid or expired"})
		case errors.Is(err, service.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"message": "password is too short"})
		default:
			h.logger.Error("Failed to reset password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password has been reset"})
}
