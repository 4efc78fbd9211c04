package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/cache"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/config"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/database"
	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/events"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/handler"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/logger"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/middleware"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/notify"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/repository"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/retry"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/service"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/pkg/utils"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize New Relic (optional)
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.WithError(err).Warn("New Relic connection timeout")
		} else {
			log.Info("New Relic connected")
		}
	}

	// Store
	var (
		store repository.Store
		db    *database.PostgresDB
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err = database.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to PostgreSQL")
		}
		defer db.Close()
		if cfg.RunMigrations {
			if err := database.Migrate(ctx, db.DB, log); err != nil {
				log.WithError(err).Fatal("failed to run migrations")
			}
		}
		store = repository.NewStore(db.DB)
		log.Info("connected to PostgreSQL")
	default:
		store = repository.NewMemoryStore()
		log.Warn("using the in-memory store, data is lost on restart")
	}

	// Redis backs the match cache, HTTP protection and cross-replica notifications.
	// Without it each of those falls back to a local or disabled mode.
	var rdb *database.RedisDB
	if cfg.RedisURL != "" {
		rdb, err = database.NewRedis(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info("connected to Redis")
	}

	// Events
	var publisher events.Multi
	if rdb != nil {
		publisher = append(publisher, events.NewRedisPublisher(rdb.Client, cfg.EventsRedisChannel))
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = append(publisher, events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	if cfg.NSQAddress != "" {
		nsqPublisher, err := events.NewNSQPublisher(cfg.NSQAddress, cfg.NSQTopic)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to nsqd")
		}
		publisher = append(publisher, nsqPublisher)
	}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to NATS")
		}
		publisher = append(publisher, natsPublisher)
	}
	defer publisher.Close()

	// Notifications
	hub := notify.NewHub()
	var dispatcher notify.Dispatcher = notify.NewLocalDispatcher(hub)
	if rdb != nil {
		dispatcher = notify.NewRedisDispatcher(rdb.Client, cfg.NotificationChannel)

		ready := make(chan struct{})
		go func() {
			if err := notify.Relay(ctx, rdb.Client, cfg.NotificationChannel, hub, log, ready); err != nil {
				log.WithError(err).Error("notification relay stopped")
			}
		}()
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
			log.Warn("notification relay is not subscribed yet")
		}
	}
	announcer := service.NewAnnouncer(dispatcher, publisher, log)

	// Initialize services
	var matchCache cache.MatchCache
	if rdb != nil && cfg.MatchCacheTTL > 0 {
		matchCache = cache.NewMatchCache(rdb.Client, cfg.MatchCacheTTL)
	}
	retrier := retry.New(retry.Config{
		MaxRetries: cfg.MaxMatchingRetries,
		BaseDelay:  cfg.MatchRetryBaseDelay,
		MaxDelay:   time.Second,
		Multiplier: 2,
		Jitter:     true,
		Retryable:  apperrors.IsUnavailable,
	}, log)
	scorer := service.NewGeoScorer(service.Weights{
		Pickup:  cfg.PickupWeight,
		Time:    cfg.TimeWeight,
		Dropoff: cfg.DropoffWeight,
	})

	tripService := service.NewTripService(store, announcer, cfg.StoreTimeout, log)
	bookingService := service.NewBookingService(store, announcer, cfg.StoreTimeout, log)
	matchingService := service.NewMatchingService(store.Trips(), scorer, matchCache, retrier, service.MatchingConfig{
		MaxDistanceKm:  cfg.MaxDistanceKm,
		MaxTimeDiffMin: cfg.MaxTimeDiffMin,
		MaxCandidates:  cfg.MaxCandidates,
		StoreTimeout:   cfg.StoreTimeout,
	}, log)

	// Initialize handlers
	tripHandler := handler.NewTripHandler(tripService, log)
	matchHandler := handler.NewMatchHandler(matchingService, log)
	bookingHandler := handler.NewBookingHandler(bookingService, log)
	notificationHandler := handler.NewNotificationHandler(hub, log)

	// Create router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.NewRelic(nrApp))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		services := map[string]string{"store": cfg.StoreDriver}
		status := http.StatusOK

		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				services["database"] = "down"
				status = http.StatusServiceUnavailable
			} else {
				services["database"] = "up"
			}
		}
		if rdb != nil {
			if err := rdb.Health(r.Context()); err != nil {
				services["redis"] = "down"
				status = http.StatusServiceUnavailable
			} else {
				services["redis"] = "up"
			}
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		utils.JSON(w, status, map[string]interface{}{"status": state, "services": services})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		if rdb != nil {
			r.Use(middleware.NewRateLimiter(rdb.Client, cfg.RateLimitRequests, cfg.RateLimitWindow, log).Handler)
			r.Use(middleware.NewIdempotencyMiddleware(rdb.Client, cfg.IdempotencyTTL, log).Handler)
		}

		tripHandler.RegisterRoutes(r)
		matchHandler.RegisterRoutes(r)
		bookingHandler.RegisterRoutes(r)
		notificationHandler.RegisterRoutes(r)
	})

	// Create server. No write timeout: notification streams stay open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	// notification streams never finish on their own
	srv.RegisterOnShutdown(hub.Close)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}

	// let in-flight notifications and events reach their transports
	announcer.Wait()
	if nrApp != nil {
		nrApp.Shutdown(10 * time.Second)
	}

	log.Info("server stopped gracefully")
}
