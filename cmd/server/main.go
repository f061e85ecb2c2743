package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	appaccount "github.com/avwx/portal/internal/application/account"
	appbilling "github.com/avwx/portal/internal/application/billing"
	"github.com/avwx/portal/internal/application/identity"
	"github.com/avwx/portal/internal/domain/shared"
	"github.com/avwx/portal/internal/infrastructure/auth"
	"github.com/avwx/portal/internal/infrastructure/billing"
	"github.com/avwx/portal/internal/infrastructure/cache"
	"github.com/avwx/portal/internal/infrastructure/config"
	"github.com/avwx/portal/internal/infrastructure/logger"
	"github.com/avwx/portal/internal/infrastructure/mailing"
	"github.com/avwx/portal/internal/infrastructure/persistence"
	"github.com/avwx/portal/internal/infrastructure/telemetry"
	"github.com/avwx/portal/internal/interfaces/http/handler"
	"github.com/avwx/portal/internal/interfaces/http/middleware"
	"github.com/avwx/portal/internal/interfaces/http/router"
)

//	@title			AVWX Account Portal API
//	@version		1.0
//	@description	Account, API token, subscription and usage management for the AVWX weather API.

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting AVWX portal",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version))

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	database, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Warn("Database close failed", zap.Error(err))
		}
	}()

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := database.DB.Use(otelgorm.NewPlugin()); err != nil {
			log.Warn("Failed to enable database tracing", zap.Error(err))
		}
	}

	// Redis backs the token blacklist and webhook idempotency. Without
	// it both fall back to process-local stores, which is fine for a
	// single instance.
	var blacklist auth.TokenBlacklist
	var idempotency shared.IdempotencyStore

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory token blacklist and idempotency store", zap.Error(err))
		blacklist = auth.NewInMemoryTokenBlacklist()
		idempotency = cache.NewInMemoryIdempotencyStore()
	} else {
		defer func() {
			_ = redisClient.Close()
		}()
		blacklist = auth.NewRedisTokenBlacklist(redisClient)
		idempotency = cache.NewRedisIdempotencyStore(redisClient, "portal")
	}

	accountRepo := persistence.NewGormAccountRepository(database.DB)
	planRepo := persistence.NewGormPlanRepository(database.DB)
	usageStore := persistence.NewGormUsageStore(database.DB)

	jwtService := auth.NewJWTService(cfg.JWT)

	var gateway appaccount.BillingGateway
	if cfg.Stripe.IsConfigured() {
		adapter, err := billing.NewStripeAdapter(&cfg.Stripe, log)
		if err != nil {
			log.Fatal("Failed to initialize Stripe", zap.Error(err))
		}
		gateway = adapter
	} else {
		log.Warn("Stripe is not configured, paid plan changes are disabled")
		gateway = billing.DisabledGateway{}
	}

	var mailingList *mailing.MailchimpClient
	if cfg.Mailing.Enabled {
		mailingList, err = mailing.NewMailchimpClient(cfg.Mailing, log)
		if err != nil {
			log.Fatal("Failed to initialize mailing list client", zap.Error(err))
		}
	}

	authService := newAuthService(accountRepo, jwtService, blacklist, mailingList, log)
	tokenService := appaccount.NewTokenService(accountRepo, log)
	usageService := appaccount.NewUsageService(accountRepo, usageStore, log)
	planService := appaccount.NewPlanService(accountRepo, planRepo, gateway, log)
	accountService := newAccountService(accountRepo, gateway, mailingList, log)
	webhookService := appbilling.NewWebhookService(accountRepo, planRepo, idempotency, cfg.Stripe.WebhookSecret, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxy configuration", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	handler.NewSystemHandler(database.DB, version, log).RegisterRoutes(engine)

	// Webhooks authenticate by signature, not bearer token
	handler.NewWebhookHandler(webhookService, log).RegisterRoutes(engine.Group(""))

	r := router.New(engine)
	r.Register(
		handler.NewAuthHandler(authService, log),
		handler.NewTokenHandler(tokenService, usageService, log),
		handler.NewPlanHandler(planService, log),
		handler.NewUsageHandler(usageService, log),
		handler.NewAccountHandler(accountService, log),
	)
	r.Setup("/api/v1", middleware.JWT(middleware.JWTConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
		Logger:         log,
		SkipPaths: []string{
			"/api/v1/auth/register",
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
		},
	}))

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

// newAuthService wires the optional mailing client without handing the
// service a typed nil interface value.
func newAuthService(
	accounts *persistence.GormAccountRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	mailingList *mailing.MailchimpClient,
	log *zap.Logger,
) *identity.AuthService {
	var list identity.MailingList
	if mailingList != nil {
		list = mailingList
	}
	return identity.NewAuthService(accounts, jwtService, blacklist, list, log)
}

func newAccountService(
	accounts *persistence.GormAccountRepository,
	gateway appaccount.BillingGateway,
	mailingList *mailing.MailchimpClient,
	log *zap.Logger,
) *appaccount.AccountService {
	var list appaccount.MailingList
	if mailingList != nil {
		list = mailingList
	}
	return appaccount.NewAccountService(accounts, gateway, list, log)
}
