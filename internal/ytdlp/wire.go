// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ytdlp

import (
	"strings"

	"github.com/ManuGH/dsns/internal/media"
)

// infoJSON is the subset of yt-dlp's --dump-json document the relay needs.
type infoJSON struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Extractor  string       `json:"extractor"`
	WebpageURL string       `json:"webpage_url"`
	Formats    []formatJSON `json:"formats"`

	// Single-format results (direct file links) carry the format at the top level.
	formatJSON
}

type formatJSON struct {
	FormatID    string            `json:"format_id"`
	URL         string            `json:"url"`
	Ext         string            `json:"ext"`
	VCodec      string            `json:"vcodec"`
	ACodec      string            `json:"acodec"`
	VideoExt    string            `json:"video_ext"`
	AudioExt    string            `json:"audio_ext"`
	Protocol    string            `json:"protocol"`
	Height      int               `json:"height"`
	TBR         float64           `json:"tbr"`
	ABR         float64           `json:"abr"`
	VBR         float64           `json:"vbr"`
	HTTPHeaders map[string]string `json:"http_headers"`
}

func (f formatJSON) toFormat() media.Format {
	bitrate := f.TBR
	if bitrate <= 0 {
		bitrate = f.ABR + f.VBR
	}
	return media.Format{
		ID:         f.FormatID,
		VideoCodec: codec(f.VCodec, f.VideoExt),
		AudioCodec: codec(f.ACodec, f.AudioExt),
		Ext:        strings.ToLower(f.Ext),
		Bitrate:    bitrate,
		Height:     f.Height,
		Protocol:   f.Protocol,
		URL:        f.URL,
		Headers:    f.HTTPHeaders,
	}
}

// codec fills in an absent codec from yt-dlp's *_ext hint, which is "none"
// for the missing half of a split format.
func codec(c, ext string) string {
	if c == "" && ext == "none" {
		return "none"
	}
	return c
}

func (info infoJSON) toItem() *media.Item {
	item := &media.Item{
		ID:         info.ID,
		Title:      info.Title,
		Extractor:  info.Extractor,
		WebpageURL: info.WebpageURL,
		Formats:    make([]media.Format, 0, len(info.Formats)),
	}
	for _, f := range info.Formats {
		item.Formats = append(item.Formats, f.toFormat())
	}
	if len(item.Formats) == 0 && info.URL != "" {
		top := info.formatJSON
		if top.FormatID == "" {
			top.FormatID = "0"
		}
		item.Formats = append(item.Formats, top.toFormat())
	}
	return item
}
