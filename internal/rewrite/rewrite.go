// Package rewrite drives the embedding pipeline: it scans a Markdown
// document for image references, resolves and transcodes each unique
// logical image once, and rebuilds the document with reference-style
// placeholders backed by an appended block of data-URL definitions.
package rewrite

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mie-tools/mie/internal/apperr"
	"github.com/mie-tools/mie/internal/codec"
	"github.com/mie-tools/mie/internal/mediatype"
	"github.com/mie-tools/mie/internal/quality"
	"github.com/mie-tools/mie/internal/resolver"
	"github.com/mie-tools/mie/internal/scanner"
)

const (
	// dataURLOverhead approximates the fixed cost of a data-URL
	// reference definition beyond its base64 payload.
	dataURLOverhead = 100

	placeholderPrefix = "mie-img-"
	defsMarker        = "<!-- Image references (auto-generated by mie) -->"

	// DefaultMaxSizeMB bounds a single embedded image when the caller
	// does not configure a ceiling.
	DefaultMaxSizeMB = 10
	// DefaultConcurrency bounds the resolve/transcode worker pool.
	DefaultConcurrency = 4
)

// Options configures a Rewriter.
type Options struct {
	QualityScale int // 1-9; out-of-range values are corrected to 5
	MaxSizeMB    int
	MaxWidth     int
	MaxHeight    int
	BasePath     string
	YarleMode    bool
	Concurrency  int
	FetchTimeout time.Duration
}

// Transcoder re-encodes raw image bytes. Satisfied by codec.Transcoder.
type Transcoder interface {
	Transcode(data []byte, scale int, source string) (*codec.Result, error)
}

// Rewriter rewrites one document per Rewrite call. Fields are exported
// so tests can substitute collaborators.
type Rewriter struct {
	Resolver    *resolver.Resolver
	Transcoder  Transcoder
	Scale       int
	MaxBytes    int64 // ceiling on base64 footprint, after overhead
	Concurrency int
	Log         *slog.Logger
}

// New builds a Rewriter from opts. log may be nil to discard
// diagnostics.
func New(opts Options, log *slog.Logger) *Rewriter {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scale := opts.QualityScale
	if scale == 0 {
		scale = quality.DefaultScale
	}
	if !quality.ValidScale(scale) {
		log.Warn("invalid quality scale, using default",
			slog.Int("scale", scale), slog.Int("default", quality.DefaultScale))
		scale = quality.DefaultScale
	}
	maxMB := opts.MaxSizeMB
	if maxMB <= 0 {
		maxMB = DefaultMaxSizeMB
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Rewriter{
		Resolver:    resolver.New(opts.BasePath, opts.YarleMode, opts.FetchTimeout, log),
		Transcoder:  codec.New(opts.MaxWidth, opts.MaxHeight, log),
		Scale:       scale,
		MaxBytes:    int64(maxMB) << 20,
		Concurrency: concurrency,
		Log:         log,
	}
}

// asset is one embedded logical image, shared by every reference with
// the same canonical key.
type asset struct {
	mime           string
	payload        string // base64
	quality        int
	originalSize   int
	compressedSize int
}

// outcome is the terminal state of one canonical key: an asset on
// success, otherwise the resolved identifier to report as non-embedded
// (empty for the already-embedded no-op).
type outcome struct {
	asset  *asset
	failID string
}

// Rewrite embeds every image reference in doc and returns the new text
// plus the run's statistics. Failures on individual references are
// non-fatal; the only fatal errors come from the surrounding I/O, not
// from here.
func (r *Rewriter) Rewrite(ctx context.Context, doc string) (string, *Stats, error) {
	stats := newStats(len(doc))
	refs := scanner.Scan(doc)
	r.Log.Info("found image links", slog.Int("count", len(refs)))

	keys := make([]string, len(refs))
	for i := range refs {
		keys[i] = canonicalKey(refs[i])
	}

	// Pass 1: resolve and transcode each unique key once, concurrently.
	// A second memo keyed by cleaned source means a URL reached both
	// directly and through a reference label is still fetched once.
	futures := newFutureMap[outcome]()
	sources := newFutureMap[*resolver.Source]()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)
	for i := range refs {
		f, owner := futures.claim(keys[i])
		if !owner {
			continue
		}
		ref := refs[i]
		g.Go(func() error {
			f.complete(r.process(gctx, ref, sources))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	// Pass 2: splice the document back together. Placeholder ids are
	// assigned on first successful appearance in document order, so the
	// output is deterministic regardless of completion order above.
	// Identical payloads share one definition even across distinct
	// canonical keys.
	type definition struct {
		id      string
		mime    string
		payload string
	}
	var (
		b         strings.Builder
		defs      []definition
		assigned  = make(map[string]string) // canonical key -> placeholder id
		byPayload = make(map[string]string) // mime+payload -> placeholder id
		counted   = make(map[string]bool)
		last      = 0
	)
	b.Grow(len(doc))

	for i, ref := range refs {
		b.WriteString(doc[last:ref.Position])
		last = ref.Position + ref.Length

		out, _ := futures.get(keys[i]).wait()

		if !counted[keys[i]] {
			counted[keys[i]] = true
			if out.asset != nil {
				stats.TotalImageBytes += int64(out.asset.originalSize)
				stats.TotalCompressedBytes += int64(out.asset.compressedSize)
			} else if out.failID != "" {
				stats.NonEmbedded[out.failID] = struct{}{}
			}
		}

		if out.asset == nil {
			b.WriteString(ref.Original)
			stats.Skipped++
			continue
		}
		id, ok := assigned[keys[i]]
		if !ok {
			pk := out.asset.mime + "\x00" + out.asset.payload
			id, ok = byPayload[pk]
			if !ok {
				id = fmt.Sprintf("%s%d", placeholderPrefix, len(defs)+1)
				byPayload[pk] = id
				defs = append(defs, definition{id: id, mime: out.asset.mime, payload: out.asset.payload})
			}
			assigned[keys[i]] = id
		}
		b.WriteString(renderReference(ref.Alt, id))
		stats.Embedded++
	}
	b.WriteString(doc[last:])

	if len(defs) > 0 {
		b.WriteString("\n\n")
		b.WriteString(defsMarker)
		b.WriteByte('\n')
		for _, d := range defs {
			fmt.Fprintf(&b, "[%s]: data:%s;base64,%s\n", d.id, d.mime, d.payload)
		}
	}

	out := b.String()
	stats.OutputSize = len(out)
	r.logSummary(stats)
	return out, stats, nil
}

// process runs one canonical key through resolve → video sniff →
// transcode → size guard → base64.
func (r *Rewriter) process(ctx context.Context, ref scanner.Ref, sources *futureMap[*resolver.Source]) (outcome, error) {
	src, _ := splitUnescapedPipe(ref.Source)
	src = strings.TrimSpace(src)
	r.Log.Debug("processing image", slog.String("source", src))

	resolved, err := sources.do(src, func() (*resolver.Source, error) {
		return r.Resolver.Resolve(ctx, src)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyEmbedded) {
			r.Log.Info("preserving already embedded image")
			return outcome{}, err
		}
		return outcome{failID: src}, err
	}

	if mediatype.IsVideo(resolved.Data) {
		r.Log.Info("skipping video file", slog.String("source", resolved.Identifier))
		return outcome{failID: resolved.Identifier},
			fmt.Errorf("%w: %s", apperr.ErrNotAnImage, resolved.Identifier)
	}

	res, err := r.Transcoder.Transcode(resolved.Data, r.Scale, resolved.Identifier)
	if err != nil {
		return outcome{failID: resolved.Identifier}, err
	}

	finalSize := int64(base64.StdEncoding.EncodedLen(len(res.Data))) + dataURLOverhead
	if finalSize > r.MaxBytes {
		r.Log.Debug("base64 encoded image too large",
			slog.String("source", resolved.Identifier),
			slog.String("size", FormatSize(finalSize)),
			slog.String("limit", FormatSize(r.MaxBytes)))
		return outcome{failID: resolved.Identifier},
			fmt.Errorf("%w: %s", apperr.ErrTooLarge, resolved.Identifier)
	}

	// The payload is JPEG after a re-encode; only the fast path keeps
	// the source format, and with it the extension-derived MIME.
	mime := "image/jpeg"
	if !res.Reencoded {
		mime = mediatype.FromPath(resolved.Identifier)
	}

	r.Log.Info("embedding image",
		slog.String("source", resolved.Identifier),
		slog.Int("quality", res.Quality),
		slog.String("original", FormatSize(int64(res.OriginalSize))),
		slog.String("compressed", FormatSize(int64(res.CompressedSize))))

	return outcome{asset: &asset{
		mime:           mime,
		payload:        base64.StdEncoding.EncodeToString(res.Data),
		quality:        res.Quality,
		originalSize:   res.OriginalSize,
		compressedSize: res.CompressedSize,
	}}, nil
}

// canonicalKey is the dedup identity of a logical image: the defining
// label for reference-style matches, otherwise the cleaned source.
func canonicalKey(ref scanner.Ref) string {
	if ref.Style == scanner.StyleReference {
		return "ref\x00" + ref.RefID
	}
	src, _ := splitUnescapedPipe(ref.Source)
	return "url\x00" + strings.TrimSpace(src)
}

// splitUnescapedPipe splits s at its first pipe not preceded by a
// backslash. after keeps the pipe itself and is empty when none exists.
func splitUnescapedPipe(s string) (before, after string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '|' && (i == 0 || s[i-1] != '\\') {
			return s[:i], s[i:]
		}
	}
	return s, ""
}

// renderReference builds the replacement text for an embedded
// reference. Backslash escapes in the alt proper are stripped; escaped
// pipes in the dimension suffix become literal pipes.
func renderReference(alt, id string) string {
	altText, dims := splitUnescapedPipe(alt)
	altText = strings.ReplaceAll(altText, `\`, "")
	if dims != "" {
		dims = strings.ReplaceAll(dims, `\|`, "|")
	}
	return "![" + altText + dims + "][" + id + "]"
}

func (r *Rewriter) logSummary(s *Stats) {
	totalOriginal := int64(s.InputSize) + s.TotalImageBytes
	r.Log.Info("document processed",
		slog.Int("embedded", s.Embedded),
		slog.Int("skipped", s.Skipped),
		slog.String("original", FormatSize(totalOriginal)),
		slog.String("final", FormatSize(int64(s.OutputSize))))
	for _, id := range s.NonEmbeddedList() {
		r.Log.Info("resource not embedded", slog.String("resource", id))
	}
}
