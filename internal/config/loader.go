// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every daemon environment variable.
const EnvPrefix = "DSNS_"

// EnvUmbrelAppData is the Umbrel app data directory variable honoured by the merger.
const EnvUmbrelAppData = "UMBREL_APP_DATA_DIR"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // every env key the loader looked at
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) track(key string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

func (l *Loader) envString(key, def string) string {
	return ParseString(l.track(key), def)
}

func (l *Loader) envInt(key string, def int) int {
	return ParseInt(l.track(key), def)
}

func (l *Loader) envBool(key string, def bool) bool {
	return ParseBool(l.track(key), def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	return ParseDuration(l.track(key), def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	return ParseFloat(l.track(key), def)
}

func (l *Loader) envList(key string, def []string) []string {
	return ParseList(l.track(key), def)
}

// Load loads configuration with precedence ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.mergeEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file onto cfg with STRICT parsing. Unknown
// fields and multiple documents are errors. Keys absent from the file keep
// their current values.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %q (want .yaml or .yml)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w or trailing content", ErrMultipleDocuments)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) error {
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	s := &cfg.Server
	s.ListenAddr = l.envString("LISTEN", s.ListenAddr)
	if bind := l.envString("BIND", ""); bind != "" {
		addr, err := BindListenAddr(s.ListenAddr, bind)
		if err != nil {
			return fmt.Errorf("%sBIND: %w", EnvPrefix, err)
		}
		s.ListenAddr = addr
	}
	s.ReadTimeout = l.envDuration("SERVER_READ_TIMEOUT", s.ReadTimeout)
	s.ReadHeaderTimeout = l.envDuration("SERVER_READ_HEADER_TIMEOUT", s.ReadHeaderTimeout)
	s.WriteTimeout = l.envDuration("SERVER_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = l.envDuration("SERVER_IDLE_TIMEOUT", s.IdleTimeout)
	s.MaxHeaderBytes = l.envInt("SERVER_MAX_HEADER_BYTES", s.MaxHeaderBytes)
	s.ShutdownTimeout = max(l.envDuration("SERVER_SHUTDOWN_TIMEOUT", s.ShutdownTimeout), minShutdownTimeout)
	s.MaxConnections = l.envInt("SERVER_MAX_CONNECTIONS", s.MaxConnections)

	cfg.Metrics.Enabled = l.envBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.ListenAddr = l.envString("METRICS_LISTEN", cfg.Metrics.ListenAddr)

	y := &cfg.YtDLP
	y.Bin = l.envString("YTDLP_BIN", y.Bin)
	y.ProbeTimeout = l.envDuration("YTDLP_PROBE_TIMEOUT", y.ProbeTimeout)
	y.ExtraArgs = l.envList("YTDLP_EXTRA_ARGS", y.ExtraArgs)
	y.VideoSelector = l.envString("YTDLP_VIDEO_SELECTOR", y.VideoSelector)
	y.AudioSelector = l.envString("YTDLP_AUDIO_SELECTOR", y.AudioSelector)

	f := &cfg.FFmpeg
	f.Bin = l.envString("FFMPEG_BIN", f.Bin)
	f.AudioBitrate = l.envString("FFMPEG_AUDIO_BITRATE", f.AudioBitrate)
	f.TranscodeAudio = l.envBool("FFMPEG_TRANSCODE_AUDIO", f.TranscodeAudio)

	r := &cfg.Relay
	r.ChunkSize = l.envInt("RELAY_CHUNK_SIZE", r.ChunkSize)
	r.KillGrace = l.envDuration("RELAY_KILL_GRACE", r.KillGrace)
	r.ProcessFallback = l.envBool("RELAY_PROCESS_FALLBACK", r.ProcessFallback)
	r.RateLimit = l.envInt("RELAY_RATE_LIMIT", r.RateLimit)
	r.ProbeRate = l.envFloat("RELAY_PROBE_RATE", r.ProbeRate)
	r.ProbeBurst = l.envInt("RELAY_PROBE_BURST", r.ProbeBurst)

	c := &cfg.Cache
	c.TTL = l.envDuration("CACHE_TTL", c.TTL)
	c.RedisAddr = l.envString("CACHE_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = l.envString("CACHE_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = l.envInt("CACHE_REDIS_DB", c.RedisDB)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.Exporter = l.envString("TELEMETRY_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("TELEMETRY_ENDPOINT", t.Endpoint)
	t.Environment = l.envString("TELEMETRY_ENVIRONMENT", t.Environment)
	t.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", t.SamplingRate)

	m := &cfg.Compose
	l.ConsumedEnvKeys[EnvUmbrelAppData] = struct{}{}
	m.Root = ParseString(EnvUmbrelAppData, m.Root)
	m.Root = l.envString("COMPOSE_ROOT", m.Root)
	m.ListenAddr = l.envString("COMPOSE_LISTEN", m.ListenAddr)
	m.Watch = l.envBool("COMPOSE_WATCH", m.Watch)

	// Read by the daemon binary before the loader runs.
	l.track("CONFIG")

	l.warnUnknownEnv()
	return nil
}

// warnUnknownEnv flags DSNS_* variables the loader never read, which are
// almost always typos.
func (l *Loader) warnUnknownEnv() {
	logger := envLogger()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			logger.Warn().Str("key", key).Msg("unknown environment variable ignored")
		}
	}
}
