// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"strings"

	"github.com/samber/lo"
)

// Default yt-dlp format expressions for the process tier.
const (
	DefaultVideoSelector = "bestvideo*+bestaudio/best"
	DefaultAudioSelector = "bestaudio[ext=m4a]/bestaudio/best"
)

// playableAudioExts are containers that play without a transcode on
// practically every client. Audio ranking prefers them over any bitrate.
var playableAudioExts = map[string]struct{}{
	"m4a": {},
	"aac": {},
	"mp3": {},
}

// SelectOptions tune the fallback plan. The zero value disables the process
// tier; use DefaultSelectOptions for the service defaults.
type SelectOptions struct {
	ProcessFallback bool
	VideoSelector   string
	AudioSelector   string
	TranscodeAudio  bool
}

// DefaultSelectOptions returns the options used when nothing is configured.
func DefaultSelectOptions() SelectOptions {
	return SelectOptions{
		ProcessFallback: true,
		VideoSelector:   DefaultVideoSelector,
		AudioSelector:   DefaultAudioSelector,
		TranscodeAudio:  true,
	}
}

// Select builds the delivery plan for item. It performs no I/O.
//
//   - video: best progressive format (direct), else best video-only plus
//     best audio-only (mux), else the process tier.
//   - audio: best audio-only format (direct), else the process tier.
//
// ErrNoSuitableFormat is returned when the item lists no formats, or when
// the process tier would be needed but is disabled.
func Select(item *Item, kind Kind, opts SelectOptions) (Plan, error) {
	if item == nil || len(item.Formats) == 0 {
		return Plan{}, NewError(ErrNoSuitableFormat, "select", "metadata lists no formats", nil)
	}

	switch kind {
	case KindAudio:
		if f, ok := BestAudio(item.Formats); ok {
			return directPlan(kind, f), nil
		}
	default:
		kind = KindVideo
		if f, ok := BestProgressive(item.Formats); ok {
			return directPlan(kind, f), nil
		}
		v, vok := BestVideoOnly(item.Formats)
		a, aok := BestAudioOnly(item.Formats)
		if vok && aok {
			return muxPlan(v, a), nil
		}
	}

	if !opts.ProcessFallback {
		return Plan{}, NewError(ErrNoSuitableFormat, "select", "no directly fetchable "+kind.String()+" format", nil)
	}
	return processPlan(kind, opts), nil
}

// BestProgressive returns the fetchable, non-segmented format carrying both
// audio and video with the highest height*1_000_000+bitrate. Ties keep the
// first format in input order.
func BestProgressive(formats []Format) (Format, bool) {
	candidates := lo.Filter(formats, func(f Format, _ int) bool {
		return f.Progressive() && f.Fetchable() && !f.Segmented()
	})
	return best(candidates, videoScore)
}

// BestVideoOnly returns the best fetchable video-only format by
// height*1_000_000+bitrate. HLS manifests qualify since the muxer reads them.
func BestVideoOnly(formats []Format) (Format, bool) {
	candidates := lo.Filter(formats, func(f Format, _ int) bool {
		return f.HasVideo() && !f.HasAudio() && f.Fetchable() && !f.FragmentList()
	})
	return best(candidates, videoScore)
}

// BestAudioOnly returns the highest-bitrate fetchable audio-only format usable
// as a mux input.
func BestAudioOnly(formats []Format) (Format, bool) {
	candidates := lo.Filter(formats, func(f Format, _ int) bool {
		return f.HasAudio() && !f.HasVideo() && f.Fetchable() && !f.FragmentList()
	})
	return best(candidates, func(f Format) float64 { return f.Bitrate })
}

// BestAudio returns the audio-only format to relay directly for an audio
// request. Formats in a widely playable container always win over others;
// within a group the highest bitrate wins and ties keep input order.
func BestAudio(formats []Format) (Format, bool) {
	candidates := lo.Filter(formats, func(f Format, _ int) bool {
		return f.HasAudio() && !f.HasVideo() && f.Fetchable() && !f.Segmented()
	})
	preferred := lo.Filter(candidates, func(f Format, _ int) bool { return PlayableAudio(f.Ext) })
	if len(preferred) > 0 {
		candidates = preferred
	}
	return best(candidates, func(f Format) float64 { return f.Bitrate })
}

// PlayableAudio reports whether ext is in the widely playable audio set.
func PlayableAudio(ext string) bool {
	_, ok := playableAudioExts[strings.ToLower(ext)]
	return ok
}

func videoScore(f Format) float64 {
	return float64(f.Height)*1_000_000 + f.Bitrate
}

// best returns the first format with the maximal score.
func best(formats []Format, score func(Format) float64) (Format, bool) {
	if len(formats) == 0 {
		return Format{}, false
	}
	winner := formats[0]
	top := score(winner)
	for _, f := range formats[1:] {
		if s := score(f); s > top {
			winner, top = f, s
		}
	}
	return winner, true
}

func directPlan(kind Kind, f Format) Plan {
	ext := strings.ToLower(f.Ext)
	return Plan{
		Tier:        TierDirect,
		Kind:        kind,
		Format:      &f,
		Ext:         ext,
		ContentType: ContentType(ext, kind),
	}
}

func muxPlan(v, a Format) Plan {
	ext := MuxContainer(v.Ext, a.Ext)
	return Plan{
		Tier:        TierMux,
		Kind:        KindVideo,
		Video:       &v,
		Audio:       &a,
		Ext:         ext,
		ContentType: ContentType(ext, KindVideo),
	}
}

func processPlan(kind Kind, opts SelectOptions) Plan {
	if kind == KindAudio {
		sel := lo.Ternary(opts.AudioSelector != "", opts.AudioSelector, DefaultAudioSelector)
		ext := lo.Ternary(opts.TranscodeAudio, "mp3", "m4a")
		return Plan{
			Tier:        TierProcess,
			Kind:        kind,
			Selector:    sel,
			Transcode:   opts.TranscodeAudio,
			Ext:         ext,
			ContentType: ContentType(ext, kind),
		}
	}
	sel := lo.Ternary(opts.VideoSelector != "", opts.VideoSelector, DefaultVideoSelector)
	return Plan{
		Tier:        TierProcess,
		Kind:        KindVideo,
		Selector:    sel,
		Ext:         "mkv",
		ContentType: ContentType("mkv", KindVideo),
	}
}

// MuxContainer picks the output container for a video+audio pair so that
// stream copy stays valid: mp4 for mp4+m4a, webm for webm+webm, Matroska otherwise.
func MuxContainer(videoExt, audioExt string) string {
	v, a := strings.ToLower(videoExt), strings.ToLower(audioExt)
	switch {
	case v == "mp4" && (a == "m4a" || a == "mp4"):
		return "mp4"
	case v == "webm" && a == "webm":
		return "webm"
	default:
		return "mkv"
	}
}

// ContentType maps a container extension to a MIME type. The kind decides
// between audio/* and video/* for containers that carry both.
func ContentType(ext string, kind Kind) string {
	switch strings.ToLower(ext) {
	case "mp4":
		return lo.Ternary(kind == KindAudio, "audio/mp4", "video/mp4")
	case "m4a":
		return "audio/mp4"
	case "webm":
		return lo.Ternary(kind == KindAudio, "audio/webm", "video/webm")
	case "mkv":
		return "video/x-matroska"
	case "mka":
		return "audio/x-matroska"
	case "mp3":
		return "audio/mpeg"
	case "aac":
		return "audio/aac"
	case "ogg", "opus", "oga":
		return "audio/ogg"
	case "flv":
		return "video/x-flv"
	case "3gp":
		return "video/3gpp"
	case "ts":
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}
