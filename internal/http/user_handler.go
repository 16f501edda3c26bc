package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-hub/internal/repository"
	"auth-hub/internal/service"
)

// UserHandler mantiene dependencias para endpoints de perfil de usuario.
type UserHandler struct {
	logger   *zap.Logger
	users    repository.UserRepository
	accounts repository.ExternalAccountRepository
	authzSvc *service.AuthzService
}

func NewUserHandler(logger *zap.Logger, users repository.UserRepository, accounts repository.ExternalAccountRepository, authzSvc *service.AuthzService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		users:    users,
		accounts: accounts,
		authzSvc: authzSvc,
	}
}

// GetProfile maneja GET /users/profile.
func (h *UserHandler) GetProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("get profile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch profile"})
		return
	}

	roles, err := h.authzSvc.ListRoles(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("list roles failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch profile"})
		return
	}

	providers := []string{}
	if accounts, err := h.accounts.ListForUser(c.Request.Context(), user.ID); err == nil {
		for _, account := range accounts {
			providers = append(providers, account.Provider)
		}
	}

	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"roles":     roleNames,
		"providers": providers,
	})
}

// UpdateProfile maneja PUT /users/profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Avatar    string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update profile request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.users.UpdateProfile(c.Request.Context(), claims.UserID, req.FirstName, req.LastName, req.Avatar); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("update profile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update profile"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("get profile after update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
