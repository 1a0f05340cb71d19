package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vibeconnect/social-backend/internal/config"
	"github.com/vibeconnect/social-backend/internal/db"
	httpHandlers "github.com/vibeconnect/social-backend/internal/http/handlers"
	"github.com/vibeconnect/social-backend/internal/http/handlers/common"
	"github.com/vibeconnect/social-backend/internal/http/middleware"
	httpRouter "github.com/vibeconnect/social-backend/internal/http/router"
	"github.com/vibeconnect/social-backend/internal/logger"
	"github.com/vibeconnect/social-backend/internal/mailer"
	"github.com/vibeconnect/social-backend/internal/oauth"
	"github.com/vibeconnect/social-backend/internal/repository"
	"github.com/vibeconnect/social-backend/internal/service"
	"github.com/vibeconnect/social-backend/internal/ws"
)

const appName = "VibeConnect"

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
	}
	logger.Init(logLevel, cfg.IsProduction())

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.L().Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, db.Migrations(cfg.MigrationsPath)); err != nil {
		logger.L().Fatalf("main: ошибка миграций: %v", err)
	}

	// Redis нужен только для общего лимитера между инстансами.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = db.NewRedis(ctx, cfg.RedisURL, 5, 2*time.Second)
		if err != nil {
			logger.L().Fatalf("main: ошибка подключения к redis: %v", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.L().Warnf("main: ошибка закрытия redis: %v", err)
			}
		}()
	}

	rateLimitStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		logger.L().Fatalf("main: %v", err)
	}

	// Почта.
	var sender mailer.Sender
	if cfg.PostmarkServerToken != "" {
		sender, err = mailer.NewPostmarkSender(mailer.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			SenderEmail:  cfg.SenderEmail,
			SupportEmail: cfg.SupportEmail,
		})
		if err != nil {
			logger.L().Fatalf("main: %v", err)
		}
	} else {
		sender = mailer.NewLogSender(logger.L(), !cfg.IsProduction())
	}
	mail := mailer.New(sender, appName, cfg.FrontendURL)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	go hub.Run()

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	verificationRepo := repository.NewVerificationRepository(dbConn)
	resetRepo := repository.NewPasswordResetRepository(dbConn)

	// Сервисы.
	tokens := service.NewTokenGenerator()
	hasher := service.NewPasswordHasher(cfg.BcryptCost)
	notifier := service.NewAsyncNotifier(mail, hub, 15*time.Second)
	sessions := service.NewSessionManager(userRepo, tokens, service.SessionConfig{
		TTL:           cfg.SessionTTL,
		RememberMeTTL: cfg.RememberMeTTL,
	})

	authService := service.NewAuthService(userRepo, verificationRepo, sessions, hasher, tokens, notifier, service.AuthConfig{
		VerificationCodeTTL:  cfg.VerificationCodeTTL,
		RequireVerifiedLogin: cfg.RequireVerifiedLogin,
	})
	resetService := service.NewPasswordResetService(userRepo, resetRepo, hasher, tokens, notifier, service.PasswordResetConfig{
		TokenTTL: cfg.ResetTokenTTL,
	})

	appleVerifier := oauth.NewAppleVerifier(oauth.AppleConfig{
		ClientID:    cfg.AppleClientID,
		RedirectURI: cfg.AppleRedirectURI,
		KeysURL:     cfg.AppleKeysURL,
		Issuer:      cfg.AppleIssuer,
		Timeout:     cfg.ProviderTimeout,
	})
	identityService := service.NewIdentityService(
		userRepo,
		sessions,
		oauth.NewGoogleSessionClient(cfg.GoogleSessionURL, cfg.ProviderTimeout),
		appleVerifier,
		notifier,
	)

	// HTTP хэндлеры.
	cookies := common.CookieConfig{Secure: cfg.CookieSecure}
	authHandler := httpHandlers.NewAuthHandler(authService, resetService, cookies, cfg.ExposeCodes)
	oauthHandler := httpHandlers.NewOAuthHandler(identityService, appleVerifier.Config(), cfg.FrontendURL, cookies)
	wsHandler := httpHandlers.NewWSHandler(hub, authService, cfg.AllowedOrigins)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, redisClient)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, rateLimitStore, authService, authHandler, oauthHandler, wsHandler, healthHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L().Errorf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":            cfg.HTTPPort,
		"env":             cfg.Env,
		"redis":           redisClient != nil,
		"postmark":        cfg.PostmarkServerToken != "",
		"verified_logins": cfg.RequireVerifiedLogin,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L().Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.L().Errorf("main: ошибка закрытия базы: %v", err)
	}
}
