// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

// Tier is a delivery strategy.
type Tier string

const (
	// TierDirect fetches a single format over HTTP and relays its body.
	TierDirect Tier = "direct"
	// TierMux muxes a video-only and an audio-only format with ffmpeg.
	TierMux Tier = "mux"
	// TierProcess lets yt-dlp fetch (and mux) and relays its stdout.
	TierProcess Tier = "process"
)

func (t Tier) String() string { return string(t) }

// Plan is the outcome of format selection. It is chosen once per request.
type Plan struct {
	Tier Tier
	Kind Kind

	// Format is set for TierDirect.
	Format *Format

	// Video and Audio are set for TierMux.
	Video *Format
	Audio *Format

	// Selector is the yt-dlp format expression for TierProcess.
	Selector string
	// Transcode pipes the TierProcess output through ffmpeg to MP3.
	Transcode bool

	// Ext and ContentType describe the produced stream.
	Ext         string
	ContentType string
}

// FormatIDs returns the IDs of the formats the plan relays, for logging.
func (p Plan) FormatIDs() []string {
	switch p.Tier {
	case TierDirect:
		if p.Format != nil {
			return []string{p.Format.ID}
		}
	case TierMux:
		ids := make([]string, 0, 2)
		if p.Video != nil {
			ids = append(ids, p.Video.ID)
		}
		if p.Audio != nil {
			ids = append(ids, p.Audio.ID)
		}
		return ids
	case TierProcess:
		return []string{p.Selector}
	}
	return nil
}
