package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"log/slog"

	"mediavault/internal/config"
	"mediavault/internal/library"
	"mediavault/internal/logging"
	"mediavault/internal/worker"
)

// runWorker hosts one worker dispatcher over stdio. Stdout carries the RPC
// stream, so all logging goes to stderr and the log file only.
func runWorker(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "worker mode requires a kind argument")
		return 2
	}
	kind := args[0]

	flags := flag.NewFlagSet("mediavaultd worker", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to the configuration file")
	if err := flags.Parse(args[1:]); err != nil {
		return 2
	}

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker config: %v\n", err)
		return 1
	}

	logger, err := workerLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker logger: %v\n", err)
		return 1
	}

	server, err := workerServer(kind, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := server.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		logger.Error("worker serve", logging.Error(err))
		return 1
	}
	return 0
}

func workerServer(kind string, cfg *config.Config, logger *slog.Logger) (*worker.Server, error) {
	switch kind {
	case library.WorkerKind:
		return library.NewWorkerServer(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown worker kind %q", kind)
	}
}

func workerLogger(cfg *config.Config) (*slog.Logger, error) {
	// Stdout carries the NDJSON reply stream, so worker logs go to stderr.
	return logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: []string{"stderr"},
	})
}
