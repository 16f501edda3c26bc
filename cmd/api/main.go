package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"auth-hub/internal/config"
	"auth-hub/internal/db"
	"auth-hub/internal/email"
	apihttp "auth-hub/internal/http"
	"auth-hub/internal/repository"
	"auth-hub/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	roleRepo := repository.NewPgRoleRepository(pool)
	accountRepo := repository.NewPgExternalAccountRepository(pool)
	resetTokenRepo := repository.NewPgPasswordResetTokenRepository(pool)

	refreshTTL := time.Duration(cfg.JWTRefreshTTLHours) * time.Hour
	tokenSvc := service.NewTokenService(
		cfg.JWTAccessSecret,
		cfg.JWTRefreshSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		refreshTTL,
	)

	var (
		sessionStore service.SessionStore
		limiter      service.RateLimiter
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			sessionStore = service.NewRedisSessionStore(redisClient, refreshTTL)
			limiter = service.NewRedisRateLimiter(redisClient, 10*time.Minute, 3)
		}
		cancel()
	}
	if sessionStore == nil {
		logger.Warn("redis not configured, using in-memory session store")
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS, cfg.FrontendURL)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	authSvc := service.NewAuthService(service.AuthServiceParams{
		Logger:        logger,
		Users:         userRepo,
		Roles:         roleRepo,
		Accounts:      accountRepo,
		ResetTokens:   resetTokenRepo,
		Tokens:        tokenSvc,
		Sessions:      sessionStore,
		EmailSender:   emailSender,
		Limiter:       limiter,
		AppName:       cfg.AppName,
		MagicLinkTTL:  time.Duration(cfg.MagicLinkTTLMinutes) * time.Minute,
		ResetTokenTTL: time.Duration(cfg.ResetTokenTTLMinutes) * time.Minute,
	})
	authzSvc := service.NewAuthzService(roleRepo)

	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	twoFactorHandler := apihttp.NewTwoFactorHandler(logger, authSvc)
	userHandler := apihttp.NewUserHandler(logger, userRepo, accountRepo, authzSvc)
	router := apihttp.NewRouter(logger, tokenSvc, authSvc, authzSvc, authHandler, twoFactorHandler, userHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
