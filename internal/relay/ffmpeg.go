// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"sort"
	"strings"

	"github.com/ManuGH/dsns/internal/media"
)

// FFmpegTool labels ffmpeg stages in logs and metrics.
const FFmpegTool = "ffmpeg"

var baseArgs = []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

// MuxArgs builds the ffmpeg arguments that stream-copy video and audio into
// container and write it to stdout.
func MuxArgs(video, audio media.Format, container string) []string {
	args := append([]string(nil), baseArgs...)
	args = append(args, inputArgs(video)...)
	args = append(args, inputArgs(audio)...)
	args = append(args, "-map", "0:v:0", "-map", "1:a:0", "-c", "copy")

	switch container {
	case "mp4":
		args = append(args, "-movflags", "frag_keyframe+empty_moov+default_base_moof", "-f", "mp4")
	case "webm":
		args = append(args, "-f", "webm")
	default:
		args = append(args, "-f", "matroska")
	}
	return append(args, "pipe:1")
}

// TranscodeArgs builds the ffmpeg arguments that re-encode stdin to MP3.
func TranscodeArgs(bitrate string) []string {
	if bitrate == "" {
		bitrate = DefaultAudioBitrate
	}
	args := append([]string(nil), baseArgs...)
	return append(args, "-i", "pipe:0", "-vn", "-c:a", "libmp3lame", "-b:a", bitrate, "-f", "mp3", "pipe:1")
}

func inputArgs(f media.Format) []string {
	var args []string
	if h := headerBlock(f.Headers); h != "" {
		args = append(args, "-headers", h)
	}
	return append(args, "-i", f.URL)
}

var crlf = strings.NewReplacer("\r", "", "\n", "")

// headerBlock renders headers in ffmpeg's CRLF-terminated form, sorted by name.
func headerBlock(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(crlf.Replace(k))
		b.WriteString(": ")
		b.WriteString(crlf.Replace(headers[k]))
		b.WriteString("\r\n")
	}
	return b.String()
}
