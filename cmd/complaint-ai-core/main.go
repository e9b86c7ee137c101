// Command complaint-ai-core runs the civic-complaint AI enrichment
// pipeline: it claims pending complaints, enriches them with inference,
// priority, and duplicate/semantic validation, and writes the results
// back to the document store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/civicsignal/complaint-ai-core/internal/app"
	"github.com/civicsignal/complaint-ai-core/internal/config"
	"github.com/civicsignal/complaint-ai-core/internal/logger"
)

var Version = "dev"

func main() {
	cfg := config.FromEnv()
	log := logger.Build(logger.Config{Level: cfg.LogLevel, Component: "complaint-ai-core"}, os.Stdout)
	log.Info().Str("version", Version).Str("addr", cfg.HTTPAddr).Msg("starting complaint-ai-core")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("complaint-ai-core exited with error")
		os.Exit(1)
	}
	log.Info().Msg("complaint-ai-core stopped")
}
