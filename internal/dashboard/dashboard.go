// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dashboard serves the web view and JSON API of the compose merger.
package dashboard

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ManuGH/dsns/internal/api/middleware"
	"github.com/ManuGH/dsns/internal/api/problem"
	"github.com/ManuGH/dsns/internal/compose"
	"github.com/ManuGH/dsns/internal/log"
	"github.com/go-chi/chi/v5"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Applier is the part of compose.Applier the dashboard drives.
type Applier interface {
	Root() string
	Status() ([]compose.App, error)
	ApplyAll(ctx context.Context) ([]compose.Result, error)
}

// Options tune the dashboard router.
type Options struct {
	Version       string
	EnableMetrics bool
	EnableLogging bool
}

// Dashboard renders app status and triggers merges.
type Dashboard struct {
	applier Applier
	opts    Options
	router  chi.Router
}

// New returns a Dashboard backed by applier.
func New(applier Applier, opts Options) *Dashboard {
	d := &Dashboard{
		applier: applier,
		opts:    opts,
	}
	d.router = d.routes()
	return d
}

// Handler returns the dashboard HTTP handler.
func (d *Dashboard) Handler() http.Handler { return d.router }

func (d *Dashboard) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		CSP:                   "default-src 'self'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'",
		EnableMetrics:         d.opts.EnableMetrics,
		EnableLogging:         d.opts.EnableLogging,
	})

	r.Get("/", d.handleIndex)
	r.Post("/apply", d.handleApplyForm)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", d.handleStatus)
		r.Post("/apply", d.handleApply)
	})
	return r
}

type statusResponse struct {
	Apps []compose.App `json:"apps"`
	Root string        `json:"root"`
}

type applyResponse struct {
	Results []compose.Result `json:"results"`
}

// summary counts results per status.
type summary struct {
	Applied int
	Failed  int
	Skipped int
}

func summarize(results []compose.Result) summary {
	var s summary
	for _, r := range results {
		switch r.Status {
		case compose.StatusSuccess:
			s.Applied++
		case compose.StatusError:
			s.Failed++
		default:
			s.Skipped++
		}
	}
	return s
}

func (s summary) query() string {
	v := url.Values{}
	v.Set("applied", strconv.Itoa(s.Applied))
	v.Set("failed", strconv.Itoa(s.Failed))
	v.Set("skipped", strconv.Itoa(s.Skipped))
	return v.Encode()
}

func (s summary) String() string {
	return fmt.Sprintf("Applied %d, failed %d, skipped %d", s.Applied, s.Failed, s.Skipped)
}

// flashFrom rebuilds the summary of a previous apply from the query string.
func flashFrom(q url.Values) string {
	if !q.Has("applied") {
		return ""
	}
	atoi := func(key string) int {
		n, err := strconv.Atoi(q.Get(key))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return summary{Applied: atoi("applied"), Failed: atoi("failed"), Skipped: atoi("skipped")}.String()
}

type indexData struct {
	Root    string
	Apps    []compose.App
	Flash   string
	Version string
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	apps, err := d.applier.Status()
	if err != nil {
		d.scanFailed(w, r, err)
		return
	}

	var buf bytes.Buffer
	data := indexData{
		Root:    d.applier.Root(),
		Apps:    apps,
		Flash:   flashFrom(r.URL.Query()),
		Version: d.opts.Version,
	}
	if err := indexTemplate.Execute(&buf, data); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "dashboard")
		logger.Error().Err(err).Msg("render index")
		problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error", "INTERNAL_ERROR", "")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func (d *Dashboard) handleStatus(w http.ResponseWriter, r *http.Request) {
	apps, err := d.applier.Status()
	if err != nil {
		d.scanFailed(w, r, err)
		return
	}
	if apps == nil {
		apps = []compose.App{}
	}
	writeJSON(w, statusResponse{Apps: apps, Root: d.applier.Root()})
}

func (d *Dashboard) handleApply(w http.ResponseWriter, r *http.Request) {
	results, err := d.applier.ApplyAll(r.Context())
	if err != nil {
		d.scanFailed(w, r, err)
		return
	}
	if results == nil {
		results = []compose.Result{}
	}
	writeJSON(w, applyResponse{Results: results})
}

func (d *Dashboard) handleApplyForm(w http.ResponseWriter, r *http.Request) {
	results, err := d.applier.ApplyAll(r.Context())
	if err != nil {
		d.scanFailed(w, r, err)
		return
	}
	s := summarize(results)
	logger := log.WithComponentFromContext(r.Context(), "dashboard")
	logger.Info().
		Str(log.FieldEvent, "dashboard.apply").
		Int("applied", s.Applied).Int("failed", s.Failed).Int("skipped", s.Skipped).
		Msg("apply-all from dashboard")
	http.Redirect(w, r, "/?"+s.query(), http.StatusSeeOther)
}

func (d *Dashboard) scanFailed(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.WithComponentFromContext(r.Context(), "dashboard")
	logger.Error().Err(err).
		Str(log.FieldPath, d.applier.Root()).Msg("cannot scan app-data root")
	problem.Write(w, r, http.StatusInternalServerError, "compose/scan_failed", "Scan Failed", "SCAN_FAILED", "app-data root cannot be read")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(v)
}
