// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command daemon runs the dsns media relay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/dsns/internal/app/bootstrap"
	"github.com/ManuGH/dsns/internal/config"
	xglog "github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/version"
	"github.com/joho/godotenv"
)

func main() {
	loadDotEnv()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", config.ParseString(config.EnvPrefix+"CONFIG", ""), "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "dsns",
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.WireServices(ctx, version.Version, version.Commit, version.Date, strings.TrimSpace(*configPath))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "startup.failed").
			Msg("failed to initialize daemon")
	}

	if err := container.Run(ctx); err != nil {
		container.Logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "daemon.failed").
			Msg("daemon stopped with error")
		stop()
		os.Exit(1)
	}
	container.Logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("daemon stopped")
}

// loadDotEnv reads ./.env when present. Real environment variables win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: cannot read .env: %v\n", err)
	}
}
