package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"speakdrill/internal/bootstrap"
	"speakdrill/internal/cli"
	"speakdrill/internal/config"
	"speakdrill/internal/observability/logging"
	"speakdrill/internal/output"
)

func main() {
	if err := run(); err != nil {
		formatter := output.NewFormatter(os.Stderr)
		formatter.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	sink := cli.NewTerminalSink(os.Stdout, config.Seconds(cfg.Session.MaxDuration))
	services, err := bootstrap.BuildWithConfig(cfg, sink)
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Warn().Err(err).Msg("closing services failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := &cli.Dependencies{
		Services: services,
		Config:   cfg,
		Sink:     sink,
	}
	return cli.NewRootCmd(deps).ExecuteContext(ctx)
}
