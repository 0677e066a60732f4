package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"identity-auth/internal/config"
	"identity-auth/internal/db"
	"identity-auth/internal/email"
	"identity-auth/internal/hrsink"
	apihttp "identity-auth/internal/http"
	"identity-auth/internal/repository"
	"identity-auth/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	store := repository.NewPgStore(pool)

	statusCache := service.NewMemoryStatusCache(cfg.UserStatusCacheTTL())
	var resetThrottle service.ResetThrottle
	if cfg.ResetRequestLimit > 0 {
		resetThrottle = service.NewMemoryResetThrottle(cfg.ResetRequestWindow(), cfg.ResetRequestLimit)
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-process status cache", zap.Error(err))
		} else {
			statusCache = service.NewRedisStatusCache(redisClient, cfg.UserStatusCacheTTL())
			if cfg.ResetRequestLimit > 0 {
				resetThrottle = service.NewRedisResetThrottle(redisClient, cfg.ResetRequestWindow(), cfg.ResetRequestLimit, logger)
			}
		}
		cancel()
	}
	status := service.NewStatusWriter(statusCache, logger)

	emailSender := newSender(cfg, logger)

	var hrClient hrsink.Client = hrsink.NoopClient{}
	if cfg.HRSinkEnabled {
		hrClient = hrsink.NewHTTPClient(cfg.HRSinkBaseURL, cfg.HRSinkTimeout(), logger)
	} else {
		logger.Info("hr sink disabled")
	}
	dispatcher := hrsink.NewDispatcher(hrClient, cfg.HRSinkTimeout(), logger)

	tokens, err := service.NewJWTService(cfg.JWTSecret, cfg.JWTExpiration(), cfg.JWTClockSkew(), logger)
	if err != nil {
		logger.Fatal("jwt service", zap.Error(err))
	}
	hasher := service.NewBcryptHasher(bcrypt.DefaultCost)

	authSvc := service.NewAuthService(logger, store, hasher, tokens, status, dispatcher)
	userSvc := service.NewUserService(logger, store, status, dispatcher)
	resetSvc := service.NewResetService(logger, store, hasher, emailSender, cfg.ResetCodeTTL(), cfg.ResetRevealUnknownEmail)
	if resetThrottle != nil {
		resetSvc.WithThrottle(resetThrottle)
	}

	router := apihttp.NewRouter(
		logger,
		apihttp.AuthenticationFilter(tokens, store.Users(), logger),
		apihttp.NewAuthHandler(logger, authSvc, resetSvc),
		apihttp.NewUserHandler(logger, userSvc),
		pool,
	)

	allowed, err := cfg.AllowedPrefixes()
	if err != nil {
		logger.Fatal("internal allowlist", zap.Error(err))
	}
	internalRouter := apihttp.NewInternalRouter(logger, apihttp.NewInternalHandler(logger, userSvc), allowed)

	servers := []*http.Server{
		{Addr: ":" + cfg.HTTPPort, Handler: router, ReadHeaderTimeout: 5 * time.Second},
		{Addr: cfg.InternalHTTPAddr, Handler: internalRouter, ReadHeaderTimeout: 5 * time.Second},
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("starting server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
}

// newSender elige el canal de entrega: Resend, SMTP o log.
func newSender(cfg *config.Config, logger *zap.Logger) email.Sender {
	if cfg.ResendAPIKey != "" {
		sender, err := email.NewResendSender(cfg.ResendAPIKey, cfg.ResendFrom)
		if err == nil {
			logger.Info("email sender", zap.String("channel", "resend"))
			return sender
		}
		logger.Warn("resend sender init failed", zap.Error(err))
	}
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err == nil {
			logger.Info("email sender", zap.String("channel", "smtp"))
			return sender
		}
		logger.Warn("smtp sender init failed", zap.Error(err))
	}
	logger.Warn("no email provider configured, reset codes will only be logged")
	return email.NewLogSender(logger)
}
