package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/swipekit/swipekit/internal/audit"
	"github.com/swipekit/swipekit/internal/config"
	"github.com/swipekit/swipekit/internal/database"
	"github.com/swipekit/swipekit/internal/detect"
	"github.com/swipekit/swipekit/internal/handler"
	"github.com/swipekit/swipekit/internal/jobs"
	"github.com/swipekit/swipekit/internal/lifecycle"
	"github.com/swipekit/swipekit/internal/metrics"
	"github.com/swipekit/swipekit/internal/middleware"
	"github.com/swipekit/swipekit/internal/model"
	"github.com/swipekit/swipekit/internal/redis"
	"github.com/swipekit/swipekit/internal/repository"
	"github.com/swipekit/swipekit/internal/secrets"
	"github.com/swipekit/swipekit/internal/session"
	"github.com/swipekit/swipekit/internal/sse"
	"github.com/swipekit/swipekit/internal/timing"
	"github.com/swipekit/swipekit/internal/wire"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

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
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	accountRepo := repository.NewAccountRepository(db.DB)
	statusRepo := repository.NewAccountStatusRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	activityRepo := repository.NewActivityRepository(db.DB)
	banIndicatorRepo := repository.NewBanIndicatorRepository(db.DB)
	requestTimingRepo := repository.NewRequestTimingRepository(db.DB)

	collector, err := metrics.NewCollector()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build metrics collector")
	}

	engine := timing.NewEngine(cfg.TimingVariance, log.Logger)
	classifier := detect.NewClassifier(cfg.BanSensitivity, cfg.MaxConsecutiveErrors, log.Logger)

	tokenCipher, err := secrets.NewCipher(cfg.TokenKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid token encryption key")
	}

	newClient := func(account *model.Account) (wire.Client, error) {
		proxy := ""
		if account.Proxy != nil {
			proxy = *account.Proxy
		}
		auth, err := tokenCipher.Open(account.AuthToken)
		if err != nil {
			return nil, err
		}
		refresh, err := tokenCipher.Open(account.RefreshToken)
		if err != nil {
			return nil, err
		}
		return wire.NewHTTPClient(wire.DefaultBaseURL, wire.Credentials{
			AuthToken:          auth,
			RefreshToken:       refresh,
			DeviceID:           account.DeviceID,
			PersistentDeviceID: account.PersistentDeviceID,
			InstallID:          account.InstallID,
		}, proxy, log.Logger)
	}

	orchestrator := session.NewOrchestrator(cfg, session.Repos{
		Accounts:       accountRepo,
		Status:         statusRepo,
		Sessions:       sessionRepo,
		Activity:       activityRepo,
		BanIndicators:  banIndicatorRepo,
		RequestTimings: requestTimingRepo,
		Tx:             db,
	}, redisClient, engine, classifier, collector, newClient, log.Logger)

	manager := lifecycle.NewManager(cfg, accountRepo, statusRepo, sessionRepo, redisClient, collector, log.Logger)
	importer := lifecycle.NewImporter(manager, newClient, tokenCipher)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()
	audit.SetNotifier(func(e audit.Event) {
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		event := sse.Event{Type: string(e.Type), AccountID: e.AccountID, Data: payload}
		if err := broker.Publish(context.Background(), event); err != nil {
			log.Warn().Err(err).Msg("failed to publish lifecycle event")
		}
	})

	cycleJob := jobs.NewCycleJob(manager, orchestrator, engine, cfg.CycleInterval())
	cycleJob.Start()
	defer cycleJob.Stop()

	opsHandler := handler.NewOpsHandler(
		accountRepo, statusRepo, sessionRepo, importer, db, redisClient, collector.Handler(),
	)

	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(os.Getenv("FLY_APP_NAME") != "")

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)
	r.Method(http.MethodGet, "/api/events", handler.NewEventsHandler(broker))
	r.Mount("/", opsHandler.Routes())

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting ops server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("stopped")
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
