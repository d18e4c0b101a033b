// Package mediatype guesses image MIME types from file extensions and
// sniffs video container signatures out of raw bytes.
package mediatype

import (
	"bytes"
	"mime"
	"path"
	"strings"
)

// FromPath returns the image MIME type for a URL or file path based on
// its extension. Unknown or missing extensions fall back to the
// platform MIME registry and finally to "image/jpeg".
func FromPath(p string) string {
	// Drop query and fragment so remote URLs map by their path.
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case "":
		return "image/jpeg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	}
	if guessed := mime.TypeByExtension(ext); strings.HasPrefix(guessed, "image/") {
		// Strip any parameters the registry may attach.
		if i := strings.Index(guessed, ";"); i >= 0 {
			guessed = strings.TrimSpace(guessed[:i])
		}
		return guessed
	}
	return "image/jpeg"
}

// IsSVG reports whether the path or URL names an SVG document.
func IsSVG(p string) bool {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.EqualFold(path.Ext(p), ".svg")
}

// IsVideo reports whether data starts with a known video container
// signature. Video payloads must never be embedded as images no matter
// what extension they carry.
func IsVideo(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	switch {
	case bytes.Equal(data[0:4], []byte{0x00, 0x00, 0x01, 0xBA}): // MPEG pack
		return true
	case bytes.Equal(data[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}): // Matroska/WebM
		return true
	case bytes.Equal(data[4:8], []byte("ftyp")): // MP4/QuickTime
		return true
	case bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("AVI ")):
		return true
	case bytes.Equal(data[0:3], []byte("FLV")):
		return true
	}
	return false
}
