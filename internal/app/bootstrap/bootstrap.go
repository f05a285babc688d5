// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bootstrap is the composition root of the relay daemon.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/dsns/internal/api"
	"github.com/ManuGH/dsns/internal/cache"
	"github.com/ManuGH/dsns/internal/compose"
	"github.com/ManuGH/dsns/internal/config"
	"github.com/ManuGH/dsns/internal/daemon"
	"github.com/ManuGH/dsns/internal/dashboard"
	"github.com/ManuGH/dsns/internal/health"
	xglog "github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/metadata"
	"github.com/ManuGH/dsns/internal/metrics"
	"github.com/ManuGH/dsns/internal/platform/httpx"
	"github.com/ManuGH/dsns/internal/proc"
	"github.com/ManuGH/dsns/internal/relay"
	"github.com/ManuGH/dsns/internal/telemetry"
	"github.com/ManuGH/dsns/internal/ytdlp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	cacheCleanupInterval = time.Minute
	cacheStatsInterval   = 15 * time.Second
	redisPingTimeout     = 2 * time.Second
	redisKeyPrefix       = "dsns:"
)

// Container is the production composition root output.
type Container struct {
	Config       config.AppConfig
	ConfigHolder *config.Holder
	Logger       zerolog.Logger
	Server       *api.Server
	Manager      daemon.Manager
	App          *daemon.App
	Applier      *compose.Applier
}

// WireServices builds the production dependency graph and returns a runnable container.
func WireServices(ctx context.Context, version, commit, buildDate, explicitConfigPath string) (*Container, error) {
	if ctx == nil {
		return nil, fmt.Errorf("wire services context is nil")
	}

	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "dsns",
		Version: version,
	})
	logger := xglog.WithComponent("bootstrap")

	configPath, err := resolveConfigPath(strings.TrimSpace(explicitConfigPath))
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	loader := config.NewLoader(configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("bootstrap")

	if configPath != "" {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str(xglog.FieldPath, configPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if configBytes, marshalErr := json.Marshal(cfg); marshalErr == nil {
		hash := sha256.Sum256(configBytes)
		logger.Info().
			Str(xglog.FieldEvent, "config.snapshot").
			Str("sha256", fmt.Sprintf("%x", hash)).
			Msg("configuration snapshot fingerprint")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, fmt.Errorf("startup checks: %w", err)
	}

	serverCfg := cfg.Server

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", serverCfg.ListenAddr).
		Msg("starting dsns")
	logger.Info().Msgf("→ yt-dlp: %s (probe timeout %s)", cfg.YtDLP.Bin, cfg.YtDLP.ProbeTimeout)
	logger.Info().Msgf("→ ffmpeg: %s (audio transcode: %v)", cfg.FFmpeg.Bin, cfg.FFmpeg.TranscodeAudio)

	var hooks []namedHook

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Telemetry initialization failed, continuing without tracing")
		cfg.Telemetry.Enabled = false
	} else {
		hooks = append(hooks, namedHook{"telemetry", tel.Shutdown})
	}

	hm := health.NewManager(cfg.Version)

	metaCache, err := buildCache(ctx, cfg.Cache, hm, logger)
	if err != nil {
		return nil, err
	}
	if metaCache != nil {
		hooks = append(hooks, namedHook{"metadata_cache", func(context.Context) error { return metaCache.Close() }})
	}

	procOpts := proc.Options{KillGrace: cfg.Relay.KillGrace}
	yt := ytdlp.NewClient(cfg.YtDLP.Bin)
	yt.ProbeTimeout = cfg.YtDLP.ProbeTimeout
	yt.ExtraArgs = cfg.YtDLP.ExtraArgs
	yt.Proc = procOpts

	meta := metadata.NewService(yt, metaCache, metadata.Options{
		CacheTTL:  cfg.Cache.TTL,
		RateLimit: cfg.Relay.ProbeRate,
		RateBurst: cfg.Relay.ProbeBurst,
	})
	relayer := relay.New(httpx.NewStreamingClient(), yt, relay.Config{
		FFmpegBin:    cfg.FFmpeg.Bin,
		AudioBitrate: cfg.FFmpeg.AudioBitrate,
		Proc:         procOpts,
	})

	hm.RegisterChecker(health.NewBinaryChecker("ytdlp", cfg.YtDLP.Bin))
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))

	s, err := api.New(cfg, api.Deps{
		Metadata: meta,
		Relay:    relayer,
		Health:   hm,
	}, api.WithTracing(cfg.Telemetry.Enabled))
	if err != nil {
		return nil, fmt.Errorf("initialize api server: %w", err)
	}

	deps := daemon.Deps{
		Logger:     logger,
		APIHandler: s.Handler(),
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = promhttp.Handler()
		deps.MetricsAddr = cfg.Metrics.ListenAddr
	}

	var tasks []daemon.Task
	if metaCache != nil && cfg.Metrics.Enabled {
		tasks = append(tasks, daemon.Task{Name: "cache_stats", Run: func(ctx context.Context) error {
			return cache.Observe(ctx, metaCache, cacheStatsInterval, func(s cache.CacheStats) {
				metrics.SetMetadataCacheEntries(s.CurrentSize)
			})
		}})
	}
	var applier *compose.Applier
	if cfg.Compose.ListenAddr != "" || cfg.Compose.Watch {
		applier = compose.NewApplier(cfg.Compose.Root)
		hm.RegisterChecker(health.NewDirChecker("compose_root", cfg.Compose.Root))
		logger.Info().Msgf("→ Compose root: %s", cfg.Compose.Root)

		if cfg.Compose.ListenAddr != "" {
			dash := dashboard.New(applier, dashboard.Options{
				Version:       cfg.Version,
				EnableMetrics: cfg.Metrics.Enabled,
				EnableLogging: true,
			})
			deps.DashboardHandler = dash.Handler()
			deps.DashboardAddr = cfg.Compose.ListenAddr
		}
		if cfg.Compose.Watch {
			watcher := compose.NewWatcher(applier, compose.DefaultDebounce)
			tasks = append(tasks, daemon.Task{Name: "compose_watch", Run: watcher.Run})
		}
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		return nil, fmt.Errorf("create daemon manager: %w", err)
	}
	for _, h := range hooks {
		mgr.RegisterShutdownHook(h.name, h.fn)
	}

	holder := config.NewHolder(cfg, loader, configPath)
	app := daemon.NewApp(logger, mgr, holder, tasks...)

	return &Container{
		Config:       cfg,
		ConfigHolder: holder,
		Logger:       logger,
		Server:       s,
		Manager:      mgr,
		App:          app,
		Applier:      applier,
	}, nil
}

type namedHook struct {
	name string
	fn   daemon.ShutdownHook
}

// buildCache returns the metadata cache: Redis when an address is set,
// memory otherwise, nil when caching is disabled.
func buildCache(ctx context.Context, cfg config.CacheConfig, hm *health.Manager, logger zerolog.Logger) (cache.Cache, error) {
	if cfg.TTL <= 0 {
		logger.Info().Msg("→ Metadata cache: disabled")
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		logger.Info().Msgf("→ Metadata cache: memory (ttl %s)", cfg.TTL)
		return cache.NewMemoryCache(cacheCleanupInterval), nil
	}

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   redisKeyPrefix,
	}, xglog.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("initialize redis cache: %w", err)
	}
	hm.RegisterChecker(health.NewPingChecker("redis", redisPingTimeout, rc.HealthCheck))
	logger.Info().Msgf("→ Metadata cache: redis %s (ttl %s)", cfg.RedisAddr, cfg.TTL)
	return rc, nil
}

// Run starts the daemon app loop.
func (c *Container) Run(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("run context is nil")
	}
	if c == nil {
		return fmt.Errorf("container is nil")
	}
	if c.App == nil || c.Manager == nil || c.Server == nil {
		return fmt.Errorf("container is not fully initialized")
	}
	return c.App.Run(ctx)
}

// resolveConfigPath returns the absolute config path, or "" for an
// environment-only configuration.
func resolveConfigPath(explicit string) (string, error) {
	if explicit == "" {
		return "", nil
	}
	absPath, err := filepath.Abs(explicit)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for explicit config %q: %w", explicit, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("explicit config file not found %q: %w", absPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("explicit config path %q is a directory", absPath)
	}
	return absPath, nil
}
