// Package main provides the entry point for the fsechat MCP server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/fsechat/internal/app"
	"github.com/raphaelgruber/fsechat/internal/config"
	"github.com/raphaelgruber/fsechat/internal/server"
	"github.com/raphaelgruber/fsechat/internal/tools"
)

const version = "0.1.0"

func main() {
	httpAddr := flag.String("http", "", "serve streamable HTTP on this address instead of stdio (e.g. :8484)")
	wipeDB := flag.Bool("wipe", false, "wipe all conversation data on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("fsechat-mcp starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"llm", cfg.LLM,
		"embedding_model", cfg.EmbedModel,
		"session_store", cfg.SessionStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing connections")
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	if *wipeDB || os.Getenv("FSECHAT_WIPE_DB") == "true" {
		if err := a.DB.WipeData(ctx); err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}

	deps, err := a.ToolDependencies()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	srv := server.New(version, logger)
	srv.Setup()
	tools.RegisterAll(srv.MCPServer(), deps)
	logger.Info("server ready, awaiting connections")

	if *httpAddr != "" {
		err = srv.RunHTTP(ctx, *httpAddr)
	} else {
		err = srv.Run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
