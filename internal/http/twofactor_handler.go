package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-hub/internal/service"
)

// TwoFactorHandler mantiene dependencias para endpoints de segundo factor.
type TwoFactorHandler struct {
	logger  *zap.Logger
	authSvc *service.AuthService
}

func NewTwoFactorHandler(logger *zap.Logger, authSvc *service.AuthService) *TwoFactorHandler {
	return &TwoFactorHandler{
		logger:  logger,
		authSvc: authSvc,
	}
}

// Setup maneja POST /auth/2fa/setup. Provisiona el secreto sin habilitar
// todavía el segundo factor.
func (h *TwoFactorHandler) Setup(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	enrollment, err := h.authSvc.SetupTwoFactor(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("2fa setup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not set up two-factor"})
		return
	}

	c.JSON(http.StatusOK, enrollment)
}

// Verify maneja POST /auth/2fa/verify. Solo un código válido habilita el
// segundo factor; un secreto mal copiado no bloquea la cuenta.
func (h *TwoFactorHandler) Verify(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid 2fa verify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.authSvc.EnableTwoFactor(c.Request.Context(), claims.UserID, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, service.ErrTwoFactorNotSetUp):
			c.JSON(http.StatusBadRequest, gin.H{"error": "two-factor not set up"})
		case errors.Is(err, service.ErrInvalidTwoFactorCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid two-factor code"})
		default:
			h.logger.Error("2fa verify failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enable two-factor"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "two-factor enabled"})
}
