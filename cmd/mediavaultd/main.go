package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mediavault/internal/config"
	"mediavault/internal/daemon"
	"mediavault/internal/ipc"
	"mediavault/internal/logging"
)

func main() {
	// The daemon respawns this binary with "worker <kind>" argv to host the
	// library index in its own process.
	if len(os.Args) > 1 && os.Args[1] == "worker" {
		os.Exit(runWorker(os.Args[2:]))
	}
	os.Exit(runDaemon(os.Args[1:]))
}

func runDaemon(args []string) int {
	flags := flag.NewFlagSet("mediavaultd", flag.ExitOnError)
	configPath := flags.String("config", "", "path to the configuration file")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Printf("init logger: %v", err)
		return 1
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return 1
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return 1
	}

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return 1
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-ctx.Done()
	logger.Info("mediavaultd shutting down")
	return 0
}
