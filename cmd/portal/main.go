package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/aggregator"
	"stealthcompany.com/hrportal/internal/api"
	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/backend"
	"stealthcompany.com/hrportal/internal/cache"
	"stealthcompany.com/hrportal/internal/config"
	"stealthcompany.com/hrportal/internal/couchbase"
	"stealthcompany.com/hrportal/internal/dispatch"
	"stealthcompany.com/hrportal/internal/feed"
	"stealthcompany.com/hrportal/internal/metrics"
	"stealthcompany.com/hrportal/internal/notify"
	"stealthcompany.com/hrportal/internal/orchestrator"
	"stealthcompany.com/hrportal/internal/socket"
	"stealthcompany.com/hrportal/internal/sources"
	"stealthcompany.com/hrportal/internal/view"
	"stealthcompany.com/hrportal/pkg/zerolog_config"
)

const (
	shutdownTimeout = 15 * time.Second
	commandLockTTL  = 30 * time.Second
)

func main() {
	zerolog_config.SetAppPrefix("hrportal")

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := zerolog_config.StartupWithEnv(cfg.Log.ElasticsearchURL, cfg.Log.Index, cfg.Log.Level); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	log.Info().Msg("Starting hrportal service")

	loc, _ := cfg.Location()
	metrics.EnableBusinessMetrics(cfg.Metrics.Business)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orchestrator.NewSignalHandler().HandleSignals(ctx, cancel)
	services := orchestrator.NewServiceManager(shutdownTimeout)

	metrics.StartSystemMetrics(ctx, cfg.Metrics.System, cfg.Metrics.SystemInterval)

	genericClient := backend.NewGenericClient(cfg.Backends.GenericURL, cfg.Backends.Timeout)
	absenceClient := backend.NewAbsenceClient(cfg.Backends.AbsenceURL, cfg.Backends.Timeout)

	agg := aggregator.New(
		sources.NewGenericAdapter(genericClient, loc, cfg.Feed.DefaultPageSize),
		sources.NewAbsenceAdapter(absenceClient, loc),
	)

	var (
		store cache.Store
		guard dispatch.Guard = dispatch.NewMemoryGuard()
	)
	switch cfg.Cache.Driver {
	case config.CacheDriverMemory:
		store = cache.NewMemoryStore(cfg.Cache.TTL)
	case config.CacheDriverCouchbase:
		cb, err := couchbase.NewClient(couchbase.Config{
			URL:      cfg.Couchbase.URL,
			Username: cfg.Couchbase.Username,
			Password: cfg.Couchbase.Password,
			Bucket:   cfg.Couchbase.Bucket,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Couchbase")
		}
		services.OnShutdown("couchbase", func(context.Context) error { return cb.Close() })
		store = cache.NewCouchbaseStore(cb, cfg.Cache.TTL)
		// replicas share the lock documents, so a command is single-flight cluster wide
		guard = dispatch.NewLockerGuard(cb, commandLockTTL)
	}
	log.Info().Str("driver", cfg.Cache.Driver).Dur("ttl", cfg.Cache.TTL).Msg("Feed cache configured")

	controller := feed.NewController(agg, store)
	hub := socket.NewHub()
	views := view.NewRegistry(controller, hub, loc, cfg.Feed.DefaultPageSize)

	dispatcher := dispatch.New(dispatch.Deps{
		Generic:   genericClient,
		Absence:   absenceClient,
		Guard:     guard,
		Cache:     controller,
		Refresher: views,
		Sink:      notify.MultiSink{notify.LogSink{}, views},
	})

	router := api.SetupRoutes(api.Deps{
		Feed:            controller,
		Commands:        dispatcher,
		Views:           views,
		Hub:             hub,
		Location:        loc,
		DefaultPageSize: cfg.Feed.DefaultPageSize,
		Auth:            auth.Config{Enabled: cfg.Auth.Enabled, Secret: []byte(cfg.Auth.JWTSecret)},
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	services.Go(ctx, "http", func(context.Context) error {
		log.Info().Str("port", cfg.Server.Port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	services.OnShutdown("http", server.Shutdown)

	services.Go(ctx, "view-evictor", func(ctx context.Context) error {
		views.Run(ctx, cfg.Views.IdleTimeout, cfg.Views.EvictInterval)
		return nil
	})

	if err := services.Wait(ctx, cancel); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}
	log.Info().Msg("Server exited")
}
