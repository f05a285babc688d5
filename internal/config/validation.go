// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/dsns/internal/validate"
)

const (
	minChunkSize = 4 << 10
	maxChunkSize = 16 << 20
)

// Validate checks a fully merged AppConfig. Every failure is collected so the
// operator sees all problems at once; the returned error wraps ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", "must be one of trace, debug, info, warn, error", cfg.Log.Level)
	}

	v.ListenAddr("server.listenAddr", cfg.Server.ListenAddr)
	v.NonNegativeDuration("server.readTimeout", cfg.Server.ReadTimeout)
	v.PositiveDuration("server.readHeaderTimeout", cfg.Server.ReadHeaderTimeout)
	v.NonNegativeDuration("server.writeTimeout", cfg.Server.WriteTimeout)
	v.NonNegativeDuration("server.idleTimeout", cfg.Server.IdleTimeout)
	v.Positive("server.maxHeaderBytes", cfg.Server.MaxHeaderBytes)
	v.NonNegative("server.maxConnections", cfg.Server.MaxConnections)

	if cfg.Metrics.Enabled {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
	}

	v.NotEmpty("ytdlp.bin", cfg.YtDLP.Bin)
	v.PositiveDuration("ytdlp.probeTimeout", cfg.YtDLP.ProbeTimeout)
	v.NotEmpty("ytdlp.videoSelector", cfg.YtDLP.VideoSelector)
	v.NotEmpty("ytdlp.audioSelector", cfg.YtDLP.AudioSelector)

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	if cfg.FFmpeg.TranscodeAudio {
		v.NotEmpty("ffmpeg.audioBitrate", cfg.FFmpeg.AudioBitrate)
	}

	v.Range("relay.chunkSize", cfg.Relay.ChunkSize, minChunkSize, maxChunkSize)
	v.NonNegativeDuration("relay.killGrace", cfg.Relay.KillGrace)
	v.NonNegative("relay.rateLimit", cfg.Relay.RateLimit)
	if cfg.Relay.ProbeRate < 0 {
		v.AddError("relay.probeRate", "value cannot be negative", cfg.Relay.ProbeRate)
	}
	if cfg.Relay.ProbeRate > 0 {
		v.Positive("relay.probeBurst", cfg.Relay.ProbeBurst)
	}

	v.NonNegativeDuration("cache.ttl", cfg.Cache.TTL)
	if cfg.Cache.RedisAddr != "" {
		v.Range("cache.redisDB", cfg.Cache.RedisDB, 0, 15)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", strings.ToLower(cfg.Telemetry.Exporter), []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	v.NotEmpty("compose.root", cfg.Compose.Root)
	if cfg.Compose.ListenAddr != "" {
		v.ListenAddr("compose.listenAddr", cfg.Compose.ListenAddr)
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
