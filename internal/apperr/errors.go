// Package apperr defines the sentinel errors shared by the embedding pipeline.
package apperr

import "errors"

// Per-reference outcomes. All of these are local to a single image
// reference: the caller keeps the original text and moves on.
var (
	// ErrAlreadyEmbedded marks a source that is already a data URL.
	// It is a no-op signal, not a failure.
	ErrAlreadyEmbedded = errors.New("already embedded")

	// ErrUnresolvable marks a local path that could not be found after
	// all fallback attempts, or a remote fetch that failed.
	ErrUnresolvable = errors.New("unresolvable source")

	// ErrNotAnImage marks bytes that carry a video signature or that
	// no registered decoder accepts.
	ErrNotAnImage = errors.New("not an image")

	// ErrUnsupportedFormat marks an input the transcoder has no
	// rasterization path for (e.g. a malformed SVG).
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEncodingFailed marks a codec failure during re-encoding.
	ErrEncodingFailed = errors.New("encoding failed")

	// ErrTooLarge marks an image whose base64 footprint exceeds the
	// configured ceiling after transcoding.
	ErrTooLarge = errors.New("embedded size over limit")
)
