// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package relay opens the byte stream for a delivery plan. Each tier
// produces a Stream; nothing is buffered beyond one read and every process
// a tier spawns is owned by its Stream.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/media"
	"github.com/ManuGH/dsns/internal/metrics"
	"github.com/ManuGH/dsns/internal/proc"
	"github.com/ManuGH/dsns/internal/telemetry"
	"github.com/ManuGH/dsns/internal/ytdlp"
	"github.com/rs/zerolog"
)

const (
	// DefaultAudioBitrate is the MP3 bitrate used when transcoding audio.
	DefaultAudioBitrate = "192k"
	// DefaultFFmpegBin is resolved on PATH.
	DefaultFFmpegBin = "ffmpeg"

	// stderrTailLines bounds the per-tool stderr logged for a failed stream.
	stderrTailLines = 5
)

// Config configures a Relayer.
type Config struct {
	FFmpegBin    string
	AudioBitrate string
	Proc         proc.Options
}

// Relayer opens streams for delivery plans.
type Relayer struct {
	client *http.Client
	ytdlp  *ytdlp.Client
	cfg    Config
}

// New returns a Relayer. client is used for the direct tier and must not
// carry an overall timeout.
func New(client *http.Client, yt *ytdlp.Client, cfg Config) *Relayer {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = DefaultFFmpegBin
	}
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = DefaultAudioBitrate
	}
	return &Relayer{client: client, ytdlp: yt, cfg: cfg}
}

// Open starts the tier named by plan. Failures before the first byte
// (origin status, spawn errors) are returned here; failures while reading
// surface from Stream.Read. The tier is entered once; there is no fallback.
func (r *Relayer) Open(ctx context.Context, sourceURL string, plan media.Plan) (*Stream, error) {
	ctx, span := telemetry.Start(ctx, "relay.open",
		telemetry.DownloadAttributes(sourceURL, plan.Kind.String(), plan.Tier.String(), plan.FormatIDs())...)
	defer span.End()

	logger := log.WithComponentFromContext(ctx, "relay").With().
		Str(log.FieldTier, plan.Tier.String()).
		Str(log.FieldKind, plan.Kind.String()).
		Strs(log.FieldFormatID, plan.FormatIDs()).
		Logger()

	session := NewSession(logger)
	if err := session.Transition(StateForTier(plan.Tier)); err != nil {
		return nil, fmt.Errorf("relay: unknown tier %q: %w", plan.Tier, err)
	}

	var (
		body   io.ReadCloser
		length int64 = -1
		err    error
	)
	switch plan.Tier {
	case media.TierDirect:
		body, length, err = r.openDirect(ctx, plan)
	case media.TierMux:
		body, err = r.openMux(ctx, plan)
	case media.TierProcess:
		body, err = r.openProcess(ctx, sourceURL, plan)
	}
	if err != nil {
		session.finish(true)
		telemetry.RecordError(span, err, errorType(err))
		logger.Warn().Err(err).Str(log.FieldEvent, "relay.open_failed").Msg("failed to open stream")
		return nil, err
	}

	logger.Info().Str(log.FieldEvent, "relay.opened").Int64("length", length).Msg("stream opened")
	metrics.IncRelayActive(plan.Tier.String())
	return &Stream{
		body:        body,
		Tier:        plan.Tier,
		ContentType: plan.ContentType,
		Ext:         plan.Ext,
		Length:      length,
		session:     session,
		logger:      logger,
		opened:      time.Now(),
	}, nil
}

func (r *Relayer) openDirect(ctx context.Context, plan media.Plan) (io.ReadCloser, int64, error) {
	if plan.Format == nil {
		return nil, -1, errors.New("relay: direct plan without format")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, plan.Format.URL, nil)
	if err != nil {
		return nil, -1, media.NewError(media.ErrUpstreamFetch, "direct", "build request", err)
	}
	for k, v := range plan.Format.Headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, fmt.Errorf("direct: %w", ctx.Err())
		}
		return nil, -1, media.NewError(media.ErrUpstreamFetch, "direct", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		e := media.NewError(media.ErrUpstreamFetch, "direct", fmt.Sprintf("origin returned %s", resp.Status), nil)
		e.Status = resp.StatusCode
		return nil, -1, e
	}
	return resp.Body, resp.ContentLength, nil
}

func (r *Relayer) openMux(ctx context.Context, plan media.Plan) (io.ReadCloser, error) {
	if plan.Video == nil || plan.Audio == nil {
		return nil, errors.New("relay: mux plan without video and audio")
	}
	spec := proc.Spec{
		Tool: FFmpegTool,
		Path: r.cfg.FFmpegBin,
		Args: MuxArgs(*plan.Video, *plan.Audio, plan.Ext),
	}
	return r.start(ctx, spec)
}

func (r *Relayer) openProcess(ctx context.Context, sourceURL string, plan media.Plan) (io.ReadCloser, error) {
	merge := ""
	if plan.Kind == media.KindVideo {
		merge = plan.Ext
	}
	specs := []proc.Spec{r.ytdlp.StreamSpec(sourceURL, plan.Selector, merge)}
	if plan.Transcode {
		specs = append(specs, proc.Spec{
			Tool: FFmpegTool,
			Path: r.cfg.FFmpegBin,
			Args: TranscodeArgs(r.cfg.AudioBitrate),
		})
	}
	return r.start(ctx, specs...)
}

func (r *Relayer) start(ctx context.Context, specs ...proc.Spec) (io.ReadCloser, error) {
	p, err := proc.Start(ctx, r.cfg.Proc, specs...)
	if err != nil {
		return nil, err
	}
	return &processBody{p: p}, nil
}

// processBody classifies a failed exit as an upstream fetch failure.
type processBody struct {
	p *proc.Pipeline
}

func (b *processBody) Read(p []byte) (int, error) {
	n, err := b.p.Read(p)
	var exitErr *proc.ExitError
	if errors.As(err, &exitErr) {
		return n, media.NewError(media.ErrUpstreamFetch, exitErr.Tool, stderrDetail(exitErr.Stderr), exitErr)
	}
	return n, err
}

func (b *processBody) Close() error { return b.p.Close() }

func (b *processBody) StderrTail(n int) []string { return b.p.StderrTail(n) }

// stderrTailer is implemented by bodies backed by external tools.
type stderrTailer interface {
	StderrTail(n int) []string
}

func stderrDetail(lines []string) string {
	if len(lines) == 0 {
		return "process exited unsuccessfully"
	}
	return lines[len(lines)-1]
}

func errorType(err error) string {
	if kind := media.KindOf(err); kind != nil {
		return kind.Error()
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "internal"
}

// Stream is the byte stream of one delivery.
type Stream struct {
	body io.ReadCloser

	Tier        media.Tier
	ContentType string
	Ext         string
	// Length is the origin Content-Length for direct streams, -1 if unknown.
	Length int64

	session *Session
	logger  zerolog.Logger
	opened  time.Time
	read    int64
	first   bool
	closed  bool
	failure error
}

// Read reads the next chunk. io.EOF marks a complete delivery; any other
// error marks the session failed.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	if n > 0 {
		if !s.first {
			s.first = true
			metrics.ObserveFirstByte(s.Tier.String(), time.Since(s.opened))
		}
		s.read += int64(n)
		metrics.AddRelayBytes(s.Tier.String(), int64(n))
	}
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.session.finish(false)
	default:
		s.failure = err
		s.session.finish(true)
	}
	return n, err
}

// Close releases the stream. Every process it spawned is terminated and
// reaped before Close returns. A stream closed before EOF ends failed.
// Close is idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.body.Close()
	s.session.finish(true)
	metrics.DecRelayActive(s.Tier.String())

	event := s.logger.Info()
	if s.session.State() == StateFailed {
		event = s.logger.Warn().AnErr("failure", s.failure)
		if t, ok := s.body.(stderrTailer); ok {
			if tail := t.StderrTail(stderrTailLines); len(tail) > 0 {
				event = event.Strs("stderr_tail", tail)
			}
		}
	}
	event.Str(log.FieldEvent, "relay.closed").
		Str("state", string(s.session.State())).
		Int64(log.FieldBytes, s.read).
		Dur("duration", time.Since(s.opened)).
		Msg("stream closed")
	return err
}

// State returns the delivery state.
func (s *Stream) State() State { return s.session.State() }

// BytesRead returns the number of bytes relayed so far.
func (s *Stream) BytesRead() int64 { return s.read }
