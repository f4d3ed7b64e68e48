package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/assistant"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/cache"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/config"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/db"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/insight"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/logging"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/orchestrator"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/server"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/sessionstore"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/store"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(reg)

	var pool *pgxpool.Pool
	if cfg.StoreDriver == config.DriverPostgres || cfg.SessionStore == config.DriverPostgres {
		var err error
		pool, err = db.Open(ctx, cfg.DatabaseURL, 10*time.Second, db.WithMaxConns(16), db.WithHealthCheckPeriod(time.Minute))
		if err != nil {
			logger.Fatal().Err(err).Msg("database unavailable")
		}
		defer pool.Close()
	}

	readerFor, err := buildReader(ctx, cfg, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("metric store unavailable")
	}
	aggCache, closeCache, err := buildCache(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("cache unavailable")
	}
	defer closeCache()
	saver, closeSaver, err := buildSaver(ctx, cfg, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("session store unavailable")
	}
	defer closeSaver()

	engines := assistant.NewEngineSet(readerFor, aggCache,
		aggregate.WithTTL(cfg.CacheTTL),
		aggregate.WithMetrics(metrics),
		aggregate.WithLogger(logging.Component(logger, "aggregate")),
	)
	generator, err := insight.NewGenerator(insight.WithLogger(logging.Component(logger, "insight")))
	if err != nil {
		logger.Fatal().Err(err).Msg("load recommendations failed")
	}
	registry := conversation.NewRegistry(saver, conversation.WithLogger(logging.Component(logger, "conversation")))

	monitor := orchestrator.NewNetworkMonitor(
		networkProbe(cfg),
		orchestrator.WithMonitorMetrics(metrics),
		orchestrator.WithMonitorLogger(logging.Component(logger, "network")),
	)
	if err := monitor.Start(ctx, cfg.NetworkProbeSchedule); err != nil {
		logger.Fatal().Err(err).Msg("network probe schedule invalid")
	}
	defer monitor.Stop()

	responder := orchestrator.New(remoteProvider(cfg), localModel(cfg),
		orchestrator.WithPolicy(orchestrator.Policy{MaxRetries: cfg.AIMaxRetries, BaseDelay: cfg.AIRetryBase}),
		orchestrator.WithMonitor(monitor),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithLogger(logging.Component(logger, "orchestrator")),
	)
	service := assistant.NewService(registry, engines, generator, responder,
		assistant.WithMetrics(metrics),
		assistant.WithLogger(logging.Component(logger, "assistant")),
	)

	sweeper, err := startSessionSweep(ctx, cfg, registry, metrics, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("session sweep schedule invalid")
	}

	app := server.New(cfg, service, engines, generator,
		server.WithMonitor(monitor),
		server.WithGatherer(reg),
		server.WithMetrics(metrics),
		server.WithLogger(logging.Component(logger, "http")),
	)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.AppPort).Str("store", cfg.StoreDriver).Msg("health query api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-sweeper.Stop().Done()
	// Archive whatever is still open so summaries survive the restart.
	closed := registry.SweepIdle(shutdownCtx, -1)
	logger.Info().Int("sessions_archived", closed).Msg("shutdown complete")
}

func buildReader(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (func(string) store.Reader, error) {
	if cfg.StoreDriver != config.DriverPostgres {
		// Development mode: every subject shares one empty in-memory store.
		memory := store.NewMemoryStore()
		return func(string) store.Reader { return memory }, nil
	}
	if err := store.ValidateSchema(ctx, pool); err != nil {
		return nil, err
	}
	base := store.NewPGStore(pool, cfg.DefaultSubject)
	return func(subject string) store.Reader { return base.ForSubject(subject) }, nil
}

func buildCache(ctx context.Context, cfg config.Config) (cache.Store, func(), error) {
	if cfg.CacheBackend != config.DriverRedis {
		return cache.NewMemoryStore(), func() {}, nil
	}
	redisStore, err := cache.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return redisStore, func() { _ = redisStore.Close() }, nil
}

func buildSaver(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (conversation.Saver, func(), error) {
	switch cfg.SessionStore {
	case config.DriverPostgres:
		saver := sessionstore.NewPGSaver(pool)
		if err := saver.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		return saver, func() {}, nil
	case config.DriverSQLite:
		saver, err := sessionstore.NewSQLiteSaver(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return saver, func() { _ = saver.Close() }, nil
	default:
		return sessionstore.NewMemorySaver(), func() {}, nil
	}
}

func remoteProvider(cfg config.Config) orchestrator.Provider {
	if cfg.RemoteAIURL == "" {
		return nil
	}
	return orchestrator.NewRemoteProvider(orchestrator.RemoteConfig{
		Endpoint: cfg.RemoteAIURL,
		APIKey:   cfg.RemoteAIKey,
		Model:    cfg.RemoteAIModel,
		Timeout:  cfg.AITimeout,
	})
}

func localModel(cfg config.Config) orchestrator.LocalModel {
	if cfg.LocalModelURL == "" {
		return nil
	}
	return orchestrator.NewOllamaModel(cfg.LocalModelURL, cfg.LocalModelName)
}

// networkProbe checks the remote endpoint unless a dedicated probe URL is set.
// With neither configured the monitor stays online.
func networkProbe(cfg config.Config) orchestrator.ProbeFunc {
	target := cfg.NetworkProbeURL
	if target == "" {
		target = cfg.RemoteAIURL
	}
	if target == "" {
		return func(context.Context) error { return nil }
	}
	return orchestrator.HTTPProbe(&http.Client{Timeout: 5 * time.Second}, target)
}

func startSessionSweep(ctx context.Context, cfg config.Config, registry *conversation.Registry, metrics *telemetry.Metrics, logger zerolog.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(cfg.SessionSweepSchedule, func() {
		closed := registry.SweepIdle(ctx, cfg.SessionMaxIdle)
		metrics.SetActiveSessions(registry.Len())
		if closed > 0 {
			logger.Info().Int("sessions_archived", closed).Msg("idle sessions archived")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
