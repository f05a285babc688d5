// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metadata fronts the yt-dlp prober with a TTL cache, request
// coalescing and a spawn rate limit.
package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/dsns/internal/cache"
	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/media"
	"github.com/ManuGH/dsns/internal/metrics"
	"github.com/ManuGH/dsns/internal/telemetry"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	keyPrefix = "meta:"
	// maxRateWait bounds how long a probe queues behind the spawn limiter.
	maxRateWait = 30 * time.Second
)

// Prober resolves a source URL to its metadata.
type Prober interface {
	Probe(ctx context.Context, sourceURL string) (*media.Item, error)
}

// Options configures a Service. Zero values disable the cache and the limiter.
type Options struct {
	CacheTTL time.Duration
	// RateLimit is the sustained number of probes per second.
	RateLimit float64
	RateBurst int
}

// Service coalesces and caches metadata lookups.
type Service struct {
	prober  Prober
	cache   cache.Cache
	ttl     time.Duration
	limiter *rate.Limiter
	group   singleflight.Group
}

// NewService wraps prober. A nil cache or a zero TTL disables caching.
func NewService(prober Prober, c cache.Cache, opts Options) *Service {
	s := &Service{prober: prober, cache: c, ttl: opts.CacheTTL}
	if c == nil || opts.CacheTTL <= 0 {
		s.cache = cache.NewNoOpCache()
		s.ttl = 0
	}
	if opts.RateLimit > 0 {
		burst := max(opts.RateBurst, 1)
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Fetch returns the metadata for sourceURL. Concurrent calls for the same
// URL share one probe; the shared probe is detached from any single
// caller's cancellation and stays bounded by the prober's own timeout.
// The returned Item is shared and must not be modified.
func (s *Service) Fetch(ctx context.Context, sourceURL string) (*media.Item, error) {
	ctx, span := telemetry.Start(ctx, "metadata.fetch", telemetry.DownloadAttributes(sourceURL, "", "", nil)...)
	defer span.End()

	key := cacheKey(sourceURL)
	if item, ok := s.cached(ctx, key); ok {
		span.SetAttributes(telemetry.MetadataAttributes("hit", item.Extractor, len(item.Formats))...)
		return item, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		return s.probe(context.WithoutCancel(ctx), key, sourceURL)
	})

	select {
	case <-ctx.Done():
		err := fmt.Errorf("metadata fetch: %w", ctx.Err())
		telemetry.RecordError(span, err, "cancelled")
		return nil, err
	case res := <-ch:
		if res.Err != nil {
			telemetry.RecordError(span, res.Err, errorType(res.Err))
			return nil, res.Err
		}
		item := res.Val.(*media.Item)
		result := "miss"
		if res.Shared {
			result = "shared"
		}
		span.SetAttributes(telemetry.MetadataAttributes(result, item.Extractor, len(item.Formats))...)
		return item, nil
	}
}

func (s *Service) probe(ctx context.Context, key, sourceURL string) (*media.Item, error) {
	if s.limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, maxRateWait)
		err := s.limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			return nil, media.NewError(media.ErrMetadataUnavailable, "probe", "rate limit wait", err)
		}
	}

	item, err := s.prober.Probe(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	if s.ttl > 0 {
		if raw, err := json.Marshal(item); err == nil {
			s.cache.Set(ctx, key, raw, s.ttl)
		}
	}
	return item, nil
}

func (s *Service) cached(ctx context.Context, key string) (*media.Item, bool) {
	if s.ttl <= 0 {
		return nil, false
	}

	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		metrics.IncMetadataCache("miss")
		return nil, false
	}

	var item media.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		logger := log.WithComponentFromContext(ctx, "metadata")
		logger.Warn().Err(err).Msg("dropping undecodable cache entry")
		s.cache.Delete(ctx, key)
		metrics.IncMetadataCache("corrupt")
		return nil, false
	}

	metrics.IncMetadataCache("hit")
	return &item, true
}

func cacheKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func errorType(err error) string {
	if kind := media.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal"
}
