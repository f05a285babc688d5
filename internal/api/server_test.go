// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/dsns/internal/api/problem"
	"github.com/ManuGH/dsns/internal/config"
	"github.com/ManuGH/dsns/internal/media"
	"github.com/ManuGH/dsns/internal/platform/httpx"
	"github.com/ManuGH/dsns/internal/relay"
	"github.com/ManuGH/dsns/internal/ytdlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetadata struct {
	item  *media.Item
	err   error
	calls atomic.Int32
}

func (f *fakeMetadata) Fetch(_ context.Context, _ string) (*media.Item, error) {
	f.calls.Add(1)
	return f.item, f.err
}

func testConfig() config.AppConfig {
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.Metrics.Enabled = false
	cfg.Relay.RateLimit = 0
	cfg.Relay.ChunkSize = 4096
	return cfg
}

func newTestServer(t *testing.T, cfg config.AppConfig, meta MetadataFetcher) *httptest.Server {
	t.Helper()
	rl := relay.New(httpx.NewStreamingClient(), ytdlp.NewClient("yt-dlp-not-installed"), relay.Config{})
	s, err := New(cfg, Deps{Metadata: meta, Relay: rl})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postDownload(t *testing.T, ts *httptest.Server, sourceURL, format string) *http.Response {
	t.Helper()
	form := url.Values{}
	if sourceURL != "" {
		form.Set("url", sourceURL)
	}
	if format != "" {
		form.Set("format", format)
	}
	resp, err := ts.Client().PostForm(ts.URL+"/download", form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeProblem(t *testing.T, resp *http.Response) problem.Details {
	t.Helper()
	assert.Equal(t, problem.ContentType, resp.Header.Get("Content-Type"))
	var d problem.Details
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	return d
}

func progressiveItem(originURL string) *media.Item {
	return &media.Item{
		ID:    "abc",
		Title: "Café: live/set",
		Formats: []media.Format{
			{ID: "18", VideoCodec: "avc1", AudioCodec: "mp4a", Ext: "mp4", Height: 360, Protocol: "https", URL: originURL},
		},
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	require.Error(t, err)
}

func TestDownload_InputErrors(t *testing.T) {
	meta := &fakeMetadata{}
	ts := newTestServer(t, testConfig(), meta)

	tests := []struct {
		name string
		url  string
		code string
	}{
		{"missing", "", "MISSING_INPUT"},
		{"blank", "   ", "MISSING_INPUT"},
		{"ftp", "ftp://example.com/a.mp4", "INVALID_INPUT"},
		{"relative", "/watch?v=1", "INVALID_INPUT"},
		{"no host", "https://", "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postDownload(t, ts, tt.url, "video")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			d := decodeProblem(t, resp)
			assert.Equal(t, tt.code, d.Code)
			assert.NotEmpty(t, d.RequestID)
		})
	}
	assert.Zero(t, meta.calls.Load(), "invalid input must not reach the metadata fetcher")
}

func TestDownload_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		meta   *fakeMetadata
		status int
		code   string
	}{
		{
			name:   "metadata unavailable",
			meta:   &fakeMetadata{err: media.NewError(media.ErrMetadataUnavailable, "probe", "yt-dlp exited 1", nil)},
			status: http.StatusInternalServerError,
			code:   "METADATA_UNAVAILABLE",
		},
		{
			name:   "no formats",
			meta:   &fakeMetadata{item: &media.Item{ID: "x", Title: "x"}},
			status: http.StatusNotFound,
			code:   "NO_SUITABLE_FORMAT",
		},
		{
			name:   "unclassified",
			meta:   &fakeMetadata{err: errors.New("disk on fire")},
			status: http.StatusInternalServerError,
			code:   "INTERNAL_ERROR",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, testConfig(), tt.meta)
			resp := postDownload(t, ts, "https://example.com/watch?v=1", "video")
			assert.Equal(t, tt.status, resp.StatusCode)
			d := decodeProblem(t, resp)
			assert.Equal(t, tt.code, d.Code)
			assert.NotContains(t, d.Detail, "disk on fire")
		})
	}
}

func TestDownload_NoSuitableFormatWhenFallbackDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Relay.ProcessFallback = false
	meta := &fakeMetadata{item: &media.Item{
		ID:      "x",
		Formats: []media.Format{{ID: "hls", VideoCodec: "avc1", AudioCodec: "mp4a", Protocol: "m3u8_native"}},
	}}
	ts := newTestServer(t, cfg, meta)

	resp := postDownload(t, ts, "https://example.com/watch?v=1", "video")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NO_SUITABLE_FORMAT", decodeProblem(t, resp).Code)
}

func TestDownload_DirectRelay(t *testing.T) {
	payload := strings.Repeat("0123456789", 2000)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = io.WriteString(w, payload)
	}))
	defer origin.Close()

	ts := newTestServer(t, testConfig(), &fakeMetadata{item: progressiveItem(origin.URL + "/v.mp4")})
	resp := postDownload(t, ts, "https://example.com/watch?v=1", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, "direct", resp.Header.Get(HeaderDeliveryTier))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	cd := resp.Header.Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(cd, "attachment; "), cd)
	assert.Contains(t, cd, `filename="Cafe_ live_set.mp4"`)
	assert.Contains(t, cd, "filename*=UTF-8''Caf%C3%A9_%20live_set.mp4")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestDownload_UpstreamRejected(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer origin.Close()

	ts := newTestServer(t, testConfig(), &fakeMetadata{item: progressiveItem(origin.URL)})
	resp := postDownload(t, ts, "https://example.com/watch?v=1", "video")

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(HeaderDeliveryTier), "headers of a failed stream must not leak")
	assert.Equal(t, "UPSTREAM_FETCH_FAILED", decodeProblem(t, resp).Code)
}

func TestDownload_EmptyStreamIsUpstreamFailure(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer origin.Close()

	ts := newTestServer(t, testConfig(), &fakeMetadata{item: progressiveItem(origin.URL)})
	resp := postDownload(t, ts, "https://example.com/watch?v=1", "video")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDownload_MidStreamFailureTruncates(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "partial")
		http.NewResponseController(w).Flush()

		conn, _, err := http.NewResponseController(w).Hijack()
		if err == nil {
			_ = conn.Close()
		}
	}))
	defer origin.Close()

	ts := newTestServer(t, testConfig(), &fakeMetadata{item: progressiveItem(origin.URL)})
	resp := postDownload(t, ts, "https://example.com/watch?v=1", "video")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.Error(t, err, "client must observe truncation")
	assert.Equal(t, "partial", string(body))
}

func TestDownload_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Relay.RateLimit = 1
	ts := newTestServer(t, cfg, &fakeMetadata{})

	first := postDownload(t, ts, "", "")
	assert.Equal(t, http.StatusBadRequest, first.StatusCode)

	second := postDownload(t, ts, "", "")
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeProblem(t, second).Code)
}

func TestDownload_RejectsGet(t *testing.T) {
	ts := newTestServer(t, testConfig(), &fakeMetadata{})
	resp, err := ts.Client().Get(ts.URL + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, testConfig(), &fakeMetadata{})
	resp, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `action="/download"`)
	assert.Contains(t, string(body), `name="format"`)
	assert.Contains(t, string(body), "dsns test")
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, testConfig(), &fakeMetadata{})
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := ts.Client().Get(ts.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestClassify(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), media.NewError(media.ErrUpstreamFetch, "relay", "", nil))
	assert.Equal(t, http.StatusBadGateway, classify(wrapped).status)
	assert.Equal(t, "INTERNAL_ERROR", classify(&net.OpError{Op: "dial", Err: errors.New("x")}).code)
	assert.True(t, clientGone(errors.Join(errors.New("read"), context.Canceled)))
}
