// Package app wires the chat engine and its stores from configuration.
// It is the dependency injection root shared by the CLI and the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/config"
	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/ingest"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/metrics"
	"github.com/raphaelgruber/fsechat/internal/retrieval"
	"github.com/raphaelgruber/fsechat/internal/session"
	"github.com/raphaelgruber/fsechat/internal/tools"
)

// App holds every long-lived dependency.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	DB       *db.Client
	Executor *db.Executor
	Sessions session.Store
	Chat     *chat.Orchestrator

	// Embedder is nil when the embedding backend could not be set up;
	// turns then run without retrieval.
	Embedder *llm.Embedder

	closeSessions func() error
}

// New connects to the graph and session stores, initialises the schema and
// builds the orchestrator.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mc := metrics.NewCollector()

	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := dbClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
		_ = dbClient.Close(ctx)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	sessions, closeSessions, err := session.Open(ctx, cfg)
	if err != nil {
		_ = dbClient.Close(ctx)
		return nil, fmt.Errorf("open session store: %w", err)
	}

	a := &App{
		Config:        cfg,
		Logger:        logger,
		Metrics:       mc,
		DB:            dbClient,
		Executor:      db.NewExecutor(dbClient, logger, mc),
		Sessions:      sessions,
		closeSessions: closeSessions,
	}

	embedder, err := llm.NewEmbedder(cfg, logger, mc)
	if err != nil {
		logger.Warn("embedder unavailable, answering without retrieval", "provider", cfg.EmbedProvider, "error", err)
	} else {
		a.Embedder = embedder
	}

	a.Chat = a.newOrchestrator(llm.NewFactory(cfg, logger, mc))
	return a, nil
}

func (a *App) newOrchestrator(factory *llm.Factory) *chat.Orchestrator {
	deps := chat.Deps{
		Writer:     a.Executor,
		Lookup:     a.DB,
		Schema:     a.DB,
		Generators: GeneratorFactory(factory),
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	}
	if a.Embedder != nil {
		deps.Embedder = a.Embedder
		deps.Retriever = retrieval.New(a.DB, a.Logger, a.Metrics)
	}
	return chat.NewOrchestrator(deps)
}

// GeneratorFactory adapts an llm.Factory to the orchestrator.
func GeneratorFactory(f *llm.Factory) chat.GeneratorFactory {
	return func(ctx context.Context, backend llm.Backend, temperature float64) (chat.AnswerGenerator, error) {
		return f.New(ctx, backend, temperature)
	}
}

// NewTurnState starts a session with the configured defaults.
func (a *App) NewTurnState() (*chat.TurnState, error) {
	backend, err := llm.ParseBackend(a.Config.LLM)
	if err != nil {
		return nil, err
	}
	return chat.NewTurnState(backend, a.Config.Temperature, a.Config.NumDocs, a.Config.Public), nil
}

// ToolDependencies returns the dependencies of the MCP tools.
func (a *App) ToolDependencies() (*tools.Dependencies, error) {
	backend, err := llm.ParseBackend(a.Config.LLM)
	if err != nil {
		return nil, err
	}
	return &tools.Dependencies{
		Chat:     a.Chat,
		Sessions: a.Sessions,
		History:  a.DB,
		Defaults: tools.SessionDefaults{
			Backend:     backend,
			Temperature: a.Config.Temperature,
			NumDocs:     a.Config.NumDocs,
			Public:      a.Config.Public,
		},
		Logger: a.Logger,
	}, nil
}

// Importer returns a document importer writing through the executor.
func (a *App) Importer(opts ...ingest.Option) *ingest.Importer {
	opts = append([]ingest.Option{ingest.WithBatchSize(a.Config.BatchSize)}, opts...)
	if a.Embedder == nil {
		return ingest.NewImporter(a.Executor, nil, a.DB, a.Logger, opts...)
	}
	return ingest.NewImporter(a.Executor, a.Embedder, a.DB, a.Logger, opts...)
}

// Close releases the session store and the database connection.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.closeSessions != nil {
		errs = append(errs, a.closeSessions())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close(ctx))
	}
	return errors.Join(errs...)
}
