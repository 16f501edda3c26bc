package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-hub/internal/domain"
	"auth-hub/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	tokenSvc *service.TokenService,
	authSvc *service.AuthService,
	authzSvc *service.AuthzService,
	authH *AuthHandler,
	twoFactorH *TwoFactorHandler,
	userH *UserHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	authenticated := JWTAuthMiddleware(tokenSvc, authSvc)

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/social", authH.SocialLogin)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)
	auth.POST("/forgot-password", authH.ForgotPassword)
	auth.POST("/reset-password", authH.ResetPassword)
	auth.POST("/magic-link", authH.RequestMagicLink)
	auth.GET("/magic-link/verify", authH.VerifyMagicLink)
	auth.POST("/2fa/login", authH.TwoFactorLogin)
	auth.POST("/2fa/setup", authenticated, twoFactorH.Setup)
	auth.POST("/2fa/verify", authenticated, twoFactorH.Verify)

	users := r.Group("/users")
	users.GET("/profile", authenticated, userH.GetProfile)
	users.PUT("/profile", authenticated, userH.UpdateProfile)
	users.GET("/admin", authenticated, RequireRoles(authzSvc, domain.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "welcome admin"})
	})

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
