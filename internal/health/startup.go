// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"

	"github.com/ManuGH/dsns/internal/config"
	"github.com/ManuGH/dsns/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the servers start.
// Missing media tools are logged, not fatal: readiness reports them.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(logger, "api", cfg.Server.ListenAddr); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		if err := checkListenAddr(logger, "metrics", cfg.Metrics.ListenAddr); err != nil {
			return err
		}
	}

	for _, tool := range []struct{ name, bin string }{
		{"yt-dlp", cfg.YtDLP.Bin},
		{"ffmpeg", cfg.FFmpeg.Bin},
	} {
		path, err := exec.LookPath(tool.bin)
		if err != nil {
			logger.Warn().Str(log.FieldTool, tool.name).Str("bin", tool.bin).Msg("tool not found on PATH; downloads will fail")
			continue
		}
		logger.Info().Str(log.FieldTool, tool.name).Str("path", path).Msg("tool available")
	}

	if cfg.Compose.ListenAddr != "" {
		if err := checkListenAddr(logger, "compose", cfg.Compose.ListenAddr); err != nil {
			return err
		}
		if res := NewDirChecker("compose_root", cfg.Compose.Root).Check(context.Background()); res.Status != StatusHealthy {
			return fmt.Errorf("compose root %q: %s", cfg.Compose.Root, res.Error)
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, name, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s listen address %q: %w", name, addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid %s listen port %q in %q", name, port, addr)
	}
	logger.Debug().Str("listener", name).Str("addr", addr).Msg("listen address is valid")
	return nil
}
