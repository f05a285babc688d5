// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the complete daemon configuration. YAML keys are camelCase;
// every field can also be set through a DSNS_* environment variable.
type AppConfig struct {
	// Version is filled from the binary, never from the file.
	Version string `yaml:"-" json:"version,omitempty"`

	Log       LogConfig       `yaml:"log" json:"log"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	YtDLP     YtDLPConfig     `yaml:"ytdlp" json:"ytdlp"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg" json:"ffmpeg"`
	Relay     RelayConfig     `yaml:"relay" json:"relay"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Compose   ComposeConfig   `yaml:"compose" json:"compose"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level   string `yaml:"level" json:"level"`
	Service string `yaml:"service" json:"service"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listenAddr" json:"listenAddr"`
}

// YtDLPConfig configures the yt-dlp tool.
type YtDLPConfig struct {
	Bin          string        `yaml:"bin" json:"bin"`
	ProbeTimeout time.Duration `yaml:"probeTimeout" json:"probeTimeout"`
	// ExtraArgs are appended to every yt-dlp invocation before the URL.
	ExtraArgs     []string `yaml:"extraArgs" json:"extraArgs"`
	VideoSelector string   `yaml:"videoSelector" json:"videoSelector"`
	AudioSelector string   `yaml:"audioSelector" json:"audioSelector"`
}

// FFmpegConfig configures the ffmpeg tool.
type FFmpegConfig struct {
	Bin            string `yaml:"bin" json:"bin"`
	AudioBitrate   string `yaml:"audioBitrate" json:"audioBitrate"`
	TranscodeAudio bool   `yaml:"transcodeAudio" json:"transcodeAudio"`
}

// RelayConfig configures delivery.
type RelayConfig struct {
	ChunkSize int `yaml:"chunkSize" json:"chunkSize"`
	// KillGrace is the SIGTERM grace before SIGKILL; 0 kills immediately.
	KillGrace       time.Duration `yaml:"killGrace" json:"killGrace"`
	ProcessFallback bool          `yaml:"processFallback" json:"processFallback"`
	// RateLimit is the number of /download requests per minute per client; 0 disables.
	RateLimit int `yaml:"rateLimit" json:"rateLimit"`
	// ProbeRate is the sustained yt-dlp probe spawns per second; 0 disables.
	ProbeRate  float64 `yaml:"probeRate" json:"probeRate"`
	ProbeBurst int     `yaml:"probeBurst" json:"probeBurst"`
}

// CacheConfig configures the metadata cache. A zero TTL disables it; an
// empty Redis address keeps it in memory.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	RedisAddr     string        `yaml:"redisAddr" json:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword" json:"-"`
	RedisDB       int           `yaml:"redisDB" json:"redisDB"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	Endpoint     string  `yaml:"endpoint" json:"endpoint"`
	Environment  string  `yaml:"environment" json:"environment"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// ComposeConfig configures the compose override merger.
type ComposeConfig struct {
	Root string `yaml:"root" json:"root"`
	// ListenAddr serves the dashboard; empty disables it in the daemon.
	ListenAddr string `yaml:"listenAddr" json:"listenAddr"`
	// Watch re-applies overrides when they change.
	Watch bool `yaml:"watch" json:"watch"`
}
