// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ytdlp drives the yt-dlp extraction tool: metadata probes and
// stdout streaming for the process delivery tier.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/media"
	"github.com/ManuGH/dsns/internal/metrics"
	"github.com/ManuGH/dsns/internal/proc"
)

const (
	// Tool is the label used in logs and metrics.
	Tool = "yt-dlp"

	// DefaultProbeTimeout bounds a metadata probe.
	DefaultProbeTimeout = 45 * time.Second

	// maxInfoBytes caps the JSON document read from a probe.
	maxInfoBytes = 32 << 20
)

// Client runs yt-dlp.
type Client struct {
	// Bin is the yt-dlp executable (name or path).
	Bin string
	// ProbeTimeout bounds Probe. Zero means DefaultProbeTimeout.
	ProbeTimeout time.Duration
	// ExtraArgs are passed to every invocation before the URL (e.g. --cookies).
	ExtraArgs []string
	// Proc tunes process supervision.
	Proc proc.Options
}

// NewClient returns a client for bin with default settings.
func NewClient(bin string) *Client {
	if bin == "" {
		bin = Tool
	}
	return &Client{Bin: bin, ProbeTimeout: DefaultProbeTimeout}
}

func (c *Client) timeout() time.Duration {
	if c.ProbeTimeout > 0 {
		return c.ProbeTimeout
	}
	return DefaultProbeTimeout
}

// ProbeArgs returns the arguments of a metadata probe for sourceURL.
func (c *Client) ProbeArgs(sourceURL string) []string {
	args := []string{"--dump-json", "--no-playlist", "--no-warnings", "--skip-download"}
	args = append(args, c.ExtraArgs...)
	return append(args, "--", sourceURL)
}

// StreamSpec returns the process spec that writes the media selected by
// selector to stdout. mergeFormat is the container used when the selector
// merges separate streams; empty leaves the choice to yt-dlp.
func (c *Client) StreamSpec(sourceURL, selector, mergeFormat string) proc.Spec {
	args := []string{"-f", selector, "--no-playlist", "--no-part", "--no-warnings", "--quiet", "--no-progress"}
	if mergeFormat != "" {
		args = append(args, "--merge-output-format", mergeFormat)
	}
	args = append(args, "-o", "-")
	args = append(args, c.ExtraArgs...)
	args = append(args, "--", sourceURL)
	return proc.Spec{Tool: Tool, Path: c.Bin, Args: args}
}

// Probe fetches the metadata of sourceURL with a single bounded yt-dlp run.
// Every failure except cancellation by the caller is classified as
// media.ErrMetadataUnavailable.
func (c *Client) Probe(ctx context.Context, sourceURL string) (*media.Item, error) {
	logger := log.WithComponentFromContext(ctx, "ytdlp")
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	item, err := c.probe(probeCtx, sourceURL)
	switch {
	case err == nil:
		metrics.ObserveMetadataProbe("ok", time.Since(start))
	case ctx.Err() != nil:
		metrics.ObserveMetadataProbe("cancelled", time.Since(start))
		return nil, fmt.Errorf("probe: %w", ctx.Err())
	case errors.Is(probeCtx.Err(), context.DeadlineExceeded):
		metrics.ObserveMetadataProbe("timeout", time.Since(start))
		err = media.NewError(media.ErrMetadataUnavailable, "probe", fmt.Sprintf("yt-dlp timed out after %s", c.timeout()), context.DeadlineExceeded)
	default:
		metrics.ObserveMetadataProbe("error", time.Since(start))
	}

	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "metadata.probe_failed").Dur("duration", time.Since(start)).Msg("metadata probe failed")
		return nil, err
	}

	logger.Debug().
		Str(log.FieldEvent, "metadata.probed").
		Str("id", item.ID).
		Int("formats", len(item.Formats)).
		Dur("duration", time.Since(start)).
		Msg("metadata probe succeeded")
	return item, nil
}

func (c *Client) probe(ctx context.Context, sourceURL string) (*media.Item, error) {
	p, err := proc.Start(ctx, c.Proc, proc.Spec{Tool: Tool, Path: c.Bin, Args: c.ProbeArgs(sourceURL)})
	if err != nil {
		return nil, media.NewError(media.ErrMetadataUnavailable, "probe", "", err)
	}
	defer p.Close()

	line, err := firstLine(io.LimitReader(p, maxInfoBytes))
	if err != nil {
		return nil, media.NewError(media.ErrMetadataUnavailable, "probe", "", err)
	}
	if len(line) == 0 {
		return nil, media.NewError(media.ErrMetadataUnavailable, "probe", "yt-dlp produced no output", nil)
	}

	var info infoJSON
	if err := json.Unmarshal(line, &info); err != nil {
		return nil, media.NewError(media.ErrMetadataUnavailable, "probe", "malformed yt-dlp output", err)
	}
	return info.toItem(), nil
}

// firstLine returns the first non-empty line. Output after it (further
// playlist entries) is ignored. A failed process surfaces as the read error.
func firstLine(r io.Reader) ([]byte, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			return trimmed, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
	}
}
