package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"watch-match-backend/internal/catalog"
	"watch-match-backend/internal/config"
	"watch-match-backend/internal/handlers"
	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/repository"
	"watch-match-backend/internal/services"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open key-value store
	store, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open store")
	}
	defer store.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(store)
	groupRepo := repository.NewGroupRepository(store)
	queueRepo := repository.NewQueueRepository(store)
	swipeRepo := repository.NewSwipeRepository(store)
	matchRepo := repository.NewMatchRepository(store)
	ratingRepo := repository.NewRatingRepository(store)

	// Notifications: the hub serves local sockets, the bus fans out across instances
	wsHub := services.NewWSHub()
	var (
		matchNotifier services.Notifiers
		queueNotifier services.QueueNotifier = wsHub
	)
	if cfg.Notify.RedisChannel != "" {
		rdb, err := kv.NewRedisClient(ctx, cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to notification bus")
		}
		defer rdb.Close()

		bus := services.NewMatchBus(rdb, cfg.Notify.RedisChannel, wsHub)
		if err := bus.StartForwarder(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to subscribe to notification bus")
		}
		matchNotifier = append(matchNotifier, bus)
		queueNotifier = bus
		log.Info().Str("channel", cfg.Notify.RedisChannel).Msg("Notification bus started")
	} else {
		matchNotifier = append(matchNotifier, wsHub)
	}
	if cfg.APNs.KeyPath != "" {
		client, err := services.NewAPNsClient(cfg.APNs)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		matchNotifier = append(matchNotifier, services.NewAPNsNotifier(client, cfg.APNs.Topic, userRepo, wsHub))
		log.Info().Bool("production", cfg.APNs.Production).Msg("Push notifications enabled")
	}

	var titles services.TitleLookup
	if cfg.Catalog.APIKey != "" {
		titles = catalog.NewClient(cfg.Catalog)
	}

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret, cfg.JWT.TTLDays)
	router := handlers.NewRouter(cfg, handlers.Services{
		Users:   userService,
		Groups:  services.NewGroupService(groupRepo, userRepo),
		Queue:   services.NewQueueService(groupRepo, queueRepo, userRepo, ratingRepo, titles, queueNotifier),
		Matches: services.NewMatchService(groupRepo, swipeRepo, matchRepo, queueRepo, matchNotifier),
		Ratings: services.NewRatingService(ratingRepo, userRepo),
		Hub:     wsHub,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("store", cfg.Store.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

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
