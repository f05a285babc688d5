// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxFilenameLength caps attachment names, extension included, in runes.
	MaxFilenameLength = 200
	// FallbackFilename is used when nothing survives sanitisation.
	FallbackFilename = "download"

	separators = " ._-"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	illegalChars  = regexp.MustCompile(`[<>:"/\\|?*\p{Cc}]`)
	formatChars   = regexp.MustCompile(`\p{Cf}`)
	underscoreRun = regexp.MustCompile(`_{2,}`)
	extChars      = regexp.MustCompile(`[^a-z0-9]`)

	// Device names Windows refuses as file names regardless of extension.
	reservedNames = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}
)

// SanitizeFilename turns a media title into a file name base that is valid
// on common file systems. Whitespace runs collapse to one space, characters
// illegal on Windows or POSIX and control characters become "_", invisible
// format characters are dropped, and leading/trailing separators are
// trimmed. The result never exceeds MaxFilenameLength runes and is never
// empty.
func SanitizeFilename(title string) string {
	s := sanitize(title, MaxFilenameLength)
	if s == "" {
		return FallbackFilename
	}
	return s
}

// AttachmentName returns "<sanitized title>.<ext>" within MaxFilenameLength.
func AttachmentName(title, ext string) string {
	ext = extChars.ReplaceAllString(strings.ToLower(ext), "")
	if ext == "" {
		return SanitizeFilename(title)
	}
	if len(ext) > 10 {
		ext = ext[:10]
	}

	base := sanitize(title, MaxFilenameLength-len(ext)-1)
	if base == "" {
		base = FallbackFilename
	}
	return base + "." + ext
}

func sanitize(title string, limit int) string {
	s := norm.NFC.String(title)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = formatChars.ReplaceAllString(s, "")
	s = illegalChars.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, separators)

	s = truncateRunes(s, limit)
	s = strings.Trim(s, separators)

	if _, reserved := reservedNames[strings.ToUpper(s)]; reserved {
		s = "_" + s
	}
	return s
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// ContentDisposition renders an attachment header for name with an ASCII
// filename for old clients and an RFC 5987 filename* carrying the UTF-8 name.
func ContentDisposition(name string) string {
	ascii := asciiFallback(name)
	if ascii == name {
		return `attachment; filename="` + ascii + `"`
	}
	return `attachment; filename="` + ascii + `"; filename*=UTF-8''` + encodeRFC5987(name)
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func asciiFallback(name string) string {
	ext := extensionOf(name)
	base := strings.TrimSuffix(name, ext)

	folded, _, err := transform.String(stripMarks, base)
	if err != nil {
		folded = base
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r >= 0x20 && r < 0x7f && r != '"' && r != '\\' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	out := strings.Trim(underscoreRun.ReplaceAllString(b.String(), "_"), separators)
	if out == "" {
		out = FallbackFilename
	}
	return out + ext
}

func extensionOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return name[i:]
	}
	return ""
}

const hexDigits = "0123456789ABCDEF"

// encodeRFC5987 percent-encodes everything outside attr-char.
func encodeRFC5987(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
