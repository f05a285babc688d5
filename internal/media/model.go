// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the format model, the format selector and the error
// taxonomy shared by the metadata fetcher, the relay tiers and the HTTP layer.
package media

import (
	"strings"
)

// Format is one available encoding of a source media item, as reported by
// the extraction tool. Values are treated as immutable once fetched.
type Format struct {
	ID         string            `json:"id"`
	VideoCodec string            `json:"vcodec,omitempty"`
	AudioCodec string            `json:"acodec,omitempty"`
	Ext        string            `json:"ext,omitempty"`
	Bitrate    float64           `json:"bitrate,omitempty"` // kbit/s, 0 when unknown
	Height     int               `json:"height,omitempty"`
	Protocol   string            `json:"protocol,omitempty"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// HasVideo reports whether the format carries a video stream.
func (f Format) HasVideo() bool { return codecPresent(f.VideoCodec) }

// HasAudio reports whether the format carries an audio stream.
func (f Format) HasAudio() bool { return codecPresent(f.AudioCodec) }

// Progressive reports whether audio and video are muxed into one stream.
func (f Format) Progressive() bool { return f.HasVideo() && f.HasAudio() }

// Fetchable reports whether the format exposes a direct URL.
func (f Format) Fetchable() bool { return strings.TrimSpace(f.URL) != "" }

// Segmented reports whether the format is delivered as a segmented manifest
// (HLS, DASH, Smooth Streaming, HDS) rather than one HTTP resource.
func (f Format) Segmented() bool {
	p := strings.ToLower(f.Protocol)
	if p == "" {
		return false
	}
	return strings.Contains(p, "m3u8") ||
		strings.Contains(p, "dash") ||
		p == "ism" || p == "f4m"
}

// FragmentList reports whether the format is a list of fragments that only
// the extraction tool itself can stitch together. HLS manifests are not
// fragment lists: ffmpeg reads them directly.
func (f Format) FragmentList() bool {
	return f.Segmented() && !strings.Contains(strings.ToLower(f.Protocol), "m3u8")
}

func codecPresent(codec string) bool {
	c := strings.TrimSpace(strings.ToLower(codec))
	return c != "" && c != "none"
}

// Item is the metadata of one source URL.
type Item struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Extractor  string   `json:"extractor,omitempty"`
	WebpageURL string   `json:"webpage_url,omitempty"`
	Formats    []Format `json:"formats"`
}

// Kind is the requested delivery kind.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ParseKind maps the request's format field to a Kind. Empty and "video"
// select video; any other value selects audio.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(KindVideo):
		return KindVideo
	default:
		return KindAudio
	}
}

func (k Kind) String() string { return string(k) }
