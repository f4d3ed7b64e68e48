package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/assistant"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/cache"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/config"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/db"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/insight"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/logging"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/orchestrator"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/sessionstore"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/store"
)

// pipeline is the in-process stack one command runs against.
type pipeline struct {
	subject   string
	engine    *aggregate.Engine
	generator *insight.Generator
	service   *assistant.Service
	pool      *pgxpool.Pool
}

func (p *pipeline) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func buildPipeline(ctx context.Context, opts *globalOptions) (*pipeline, error) {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: opts.logLevel, Format: "console", Output: os.Stderr})

	subject := strings.TrimSpace(opts.subject)
	if subject == "" {
		subject = cfg.DefaultSubject
	}

	p := &pipeline{subject: subject}
	reader, err := p.openReader(ctx, cfg, opts.samples)
	if err != nil {
		return nil, err
	}

	engines := assistant.NewEngineSet(
		func(string) store.Reader { return reader },
		cache.NewMemoryStore(),
		aggregate.WithTTL(cfg.CacheTTL),
		aggregate.WithLogger(logging.Component(logger, "aggregate")),
	)
	p.engine = engines.For(subject)

	p.generator, err = insight.NewGenerator(insight.WithLogger(logging.Component(logger, "insight")))
	if err != nil {
		p.Close()
		return nil, err
	}

	var remote orchestrator.Provider
	if cfg.RemoteAIURL != "" {
		remote = orchestrator.NewRemoteProvider(orchestrator.RemoteConfig{
			Endpoint: cfg.RemoteAIURL,
			APIKey:   cfg.RemoteAIKey,
			Model:    cfg.RemoteAIModel,
			Timeout:  cfg.AITimeout,
		})
	}
	var local orchestrator.LocalModel
	if cfg.LocalModelURL != "" {
		local = orchestrator.NewOllamaModel(cfg.LocalModelURL, cfg.LocalModelName)
	}
	responder := orchestrator.New(remote, local,
		orchestrator.WithPolicy(orchestrator.Policy{MaxRetries: cfg.AIMaxRetries, BaseDelay: cfg.AIRetryBase}),
		orchestrator.WithLogger(logging.Component(logger, "orchestrator")),
	)

	registry := conversation.NewRegistry(sessionstore.NewMemorySaver())
	p.service = assistant.NewService(registry, engines, p.generator, responder,
		assistant.WithLogger(logging.Component(logger, "assistant")),
	)
	return p, nil
}

func (p *pipeline) openReader(ctx context.Context, cfg config.Config, samples string) (store.Reader, error) {
	if path := strings.TrimSpace(samples); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open samples: %w", err)
		}
		defer f.Close()
		memory, err := store.LoadFile(f)
		if err != nil {
			return nil, err
		}
		return memory, nil
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("no data source: pass --samples or set DATABASE_URL")
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL, 5*time.Second, db.WithMaxConns(4))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := store.ValidateSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	p.pool = pool
	return store.NewPGStore(pool, p.subject), nil
}
