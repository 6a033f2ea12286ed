package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/minutely/consult-server/internal/config"
	"github.com/minutely/consult-server/internal/database"
	"github.com/minutely/consult-server/internal/handler"
	"github.com/minutely/consult-server/internal/jobs"
	"github.com/minutely/consult-server/internal/middleware"
	"github.com/minutely/consult-server/internal/model"
	"github.com/minutely/consult-server/internal/redis"
	"github.com/minutely/consult-server/internal/repository"
	"github.com/minutely/consult-server/internal/service"
	"github.com/minutely/consult-server/internal/sse"
	"github.com/minutely/consult-server/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.RunMigrations {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		version, _ := db.MigrationVersion()
		log.Info().Int64("version", version).Msg("migrations applied")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sealer, err := util.NewSealer(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}

	accountRepo := repository.NewAccountRepository(db.DB)
	providerRepo := repository.NewProviderRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	walletRepo := repository.NewWalletRepository(db.DB)
	ledgerRepo := repository.NewLedgerRepository(db.DB)
	withdrawalRepo := repository.NewWithdrawalRepository(db.DB)
	payoutMethodRepo := repository.NewPayoutMethodRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	limiter := service.NewRateLimiter(redisClient.Client)
	walletService := service.NewWalletService(walletRepo, ledgerRepo)
	sessionService := service.NewSessionService(
		db, sessionRepo, providerRepo, accountRepo, walletService, limiter, broker,
		service.SessionConfig{
			MinBillableMinutes: cfg.MinBillableMinutes,
			DefaultCommission:  cfg.DefaultCommissionFraction,
			CreateLimit:        service.CreateQuota(cfg.SessionCreateLimit, cfg.SessionCreateWindow()),
			PendingTTL:         cfg.PendingSessionTTL(),
			RingingTTL:         cfg.RingingTTL(),
		},
	)
	payoutService := service.NewPayoutService(
		db, withdrawalRepo, payoutMethodRepo, walletService, limiter, broker, sealer,
		service.PayoutConfig{
			Min:          cfg.WithdrawalMin,
			Max:          cfg.WithdrawalMax,
			RequestLimit: service.PayoutQuota(cfg.PayoutRequestLimit, cfg.PayoutRequestWindow()),
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	rateLimitMiddleware := middleware.NewAPIRateLimitMiddleware(limiter, cfg.APIRateLimitPerMin, cfg.APIRateLimitFailOpen)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"postgres": db,
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	})
	sessionHandler := handler.NewSessionHandler(sessionService)
	payoutHandler := handler.NewPayoutHandler(payoutService)
	walletHandler := handler.NewWalletHandler(walletService)
	adminHandler := handler.NewAdminHandler(payoutService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		// The event stream outlives the request timeout.
		r.Get("/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/sessions", sessionHandler.Routes())
			r.Mount("/payouts", payoutHandler.Routes())
			r.Mount("/wallet", walletHandler.Routes())
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(middleware.RequireRole(model.RoleAdmin))
		r.Use(rateLimitMiddleware.Handler)
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Mount("/", adminHandler.Routes())
	})

	expiryJob := jobs.NewExpiryJob(sessionService, config.SessionExpiryInterval)
	expiryJob.Start()
	defer expiryJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
