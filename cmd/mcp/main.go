package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	mcpadapter "github.com/ybolotov/deep-research/internal/adapters/mcp"
	"github.com/ybolotov/deep-research/internal/bootstrap"
	"github.com/ybolotov/deep-research/internal/config"
	"github.com/ybolotov/deep-research/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// stdout carries the MCP protocol; logs must go to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), "mcp", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	server := mcpadapter.New(app.Research, app.Transcripts, version)
	if err := mcpadapter.ServeStdio(server); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
