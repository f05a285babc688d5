// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/media"
	"github.com/ManuGH/dsns/internal/metrics"
	"github.com/ManuGH/dsns/internal/relay"
	"github.com/ManuGH/dsns/internal/telemetry"
	"github.com/ManuGH/dsns/internal/validate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// HeaderDeliveryTier names the tier that produced the response body.
const HeaderDeliveryTier = "X-Delivery-Tier"

const maxFormBytes = 64 << 10

// Download outcomes for dsns_download_requests_total.
const (
	resultSuccess   = "success"
	resultTruncated = "truncated"
	resultCancelled = "cancelled"
)

// parseSourceURL validates the url form field.
func parseSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", media.NewError(media.ErrMissingInput, "parse", "form field url is required", nil)
	}
	v := validate.New()
	v.URL("url", raw, []string{"http", "https"})
	if err := v.Err(); err != nil {
		return "", media.NewError(media.ErrInvalidInput, "parse", "url must be an absolute http(s) URL", err)
	}
	return raw, nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "api")

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, logger, media.KindVideo, "", media.NewError(media.ErrInvalidInput, "parse", "malformed form body", err))
		return
	}
	kind := media.ParseKind(r.PostFormValue("format"))
	sourceURL, err := parseSourceURL(r.PostFormValue("url"))
	if err != nil {
		s.fail(w, r, logger, kind, "", err)
		return
	}

	logger = logger.With().Str(log.FieldSourceURL, sourceURL).Str(log.FieldKind, kind.String()).Logger()
	logger.Info().Str(log.FieldEvent, "download.start").Msg("download requested")

	item, err := s.metadata.Fetch(ctx, sourceURL)
	if err != nil {
		s.fail(w, r, logger, kind, "", err)
		return
	}

	plan, err := media.Select(item, kind, s.selectOpt)
	if err != nil {
		s.fail(w, r, logger, kind, "", err)
		return
	}
	tier := plan.Tier.String()
	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.DownloadAttributes(sourceURL, kind.String(), tier, plan.FormatIDs())...)
	logger = logger.With().Str(log.FieldTier, tier).Strs(log.FieldFormatID, plan.FormatIDs()).Logger()

	stream, err := s.relay.Open(ctx, sourceURL, plan)
	if err != nil {
		s.fail(w, r, logger, kind, tier, err)
		return
	}
	defer func() { _ = stream.Close() }()

	buf := make([]byte, s.chunkSize)
	n, err := readFirst(stream, buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			err = media.NewError(media.ErrUpstreamFetch, "relay", "origin returned an empty stream", nil)
		}
		s.fail(w, r, logger, kind, tier, err)
		return
	}

	s.writeHeaders(w, item, stream)
	w.WriteHeader(http.StatusOK)
	result := s.copyStream(ctx, w, logger, stream, buf[:n], buf, err)
	metrics.IncDownload(kind.String(), tier, result)
	trace.SpanFromContext(ctx).SetAttributes(telemetry.DownloadResultAttributes(result, stream.BytesRead())...)

	if result == resultTruncated {
		// Abort: the client must observe truncation.
		panic(http.ErrAbortHandler)
	}
}

// readFirst reads until at least one byte or an error arrives.
func readFirst(r io.Reader, buf []byte) (int, error) {
	for {
		n, err := r.Read(buf)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (s *Server) writeHeaders(w http.ResponseWriter, item *media.Item, stream *relay.Stream) {
	h := w.Header()
	h.Set("Content-Type", stream.ContentType)
	h.Set("Content-Disposition", media.ContentDisposition(media.AttachmentName(item.Title, stream.Ext)))
	h.Set(HeaderDeliveryTier, stream.Tier.String())
	h.Set("Cache-Control", "no-store")
	if stream.Length >= 0 {
		h.Set("Content-Length", strconv.FormatInt(stream.Length, 10))
	}
}

// copyStream writes first, then relays the rest of stream chunk by chunk,
// flushing after every write. firstErr is the error returned alongside first.
func (s *Server) copyStream(ctx context.Context, w http.ResponseWriter, logger zerolog.Logger, stream *relay.Stream, first, buf []byte, firstErr error) string {
	rc := http.NewResponseController(w)
	chunk, readErr := first, firstErr

	for {
		if len(chunk) > 0 {
			if _, err := w.Write(chunk); err != nil {
				logger.Debug().Err(err).Str(log.FieldEvent, "download.client_gone").
					Int64(log.FieldBytes, stream.BytesRead()).Msg("client stopped reading")
				return resultCancelled
			}
			_ = rc.Flush()
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			logger.Info().Str(log.FieldEvent, "download.complete").
				Int64(log.FieldBytes, stream.BytesRead()).Msg("download complete")
			return resultSuccess
		case clientGone(readErr) || ctx.Err() != nil:
			logger.Debug().Err(readErr).Str(log.FieldEvent, "download.client_gone").
				Int64(log.FieldBytes, stream.BytesRead()).Msg("client disconnected")
			return resultCancelled
		default:
			logger.Warn().Err(readErr).Str(log.FieldEvent, "relay.truncated").
				Int64(log.FieldBytes, stream.BytesRead()).Msg("stream failed mid-response")
			return resultTruncated
		}

		n, err := stream.Read(buf)
		chunk, readErr = buf[:n], err
	}
}

// fail records and renders a failure that happened before any body byte.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, kind media.Kind, tier string, err error) {
	if tier == "" {
		tier = "none"
	}
	if clientGone(err) || r.Context().Err() != nil {
		metrics.IncDownload(kind.String(), tier, resultCancelled)
		logger.Debug().Err(err).Str(log.FieldEvent, "download.client_gone").Msg("client disconnected before streaming")
		return
	}

	spec := classify(err)
	metrics.IncDownload(kind.String(), tier, strings.ToLower(spec.code))

	event := logger.Warn()
	if spec.status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str(log.FieldEvent, "download.failed").
		Int("status", spec.status).
		Str("code", spec.code).
		Msg("download failed")

	writeError(w, r, err)
}
