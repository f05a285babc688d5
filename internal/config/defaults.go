// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/dsns/internal/media"
)

// DefaultComposeRoot is the Umbrel app data directory.
const DefaultComposeRoot = "/umbrel-app-data"

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:   "info",
			Service: "dsns",
		},
		Server: defaultServerConfig(),
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
		YtDLP: YtDLPConfig{
			Bin:           "yt-dlp",
			ProbeTimeout:  45 * time.Second,
			VideoSelector: media.DefaultVideoSelector,
			AudioSelector: media.DefaultAudioSelector,
		},
		FFmpeg: FFmpegConfig{
			Bin:            "ffmpeg",
			AudioBitrate:   "192k",
			TranscodeAudio: true,
		},
		Relay: RelayConfig{
			ChunkSize:       64 << 10,
			KillGrace:       0,
			ProcessFallback: true,
			RateLimit:       30,
			ProbeRate:       0,
			ProbeBurst:      4,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
		Compose: ComposeConfig{
			Root: DefaultComposeRoot,
		},
	}
}
