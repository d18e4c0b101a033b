// Package codec re-encodes arbitrary image bytes as JPEG: optional SVG
// rasterization, size-driven quality selection, uniform downscaling,
// and alpha flattening onto a white background.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"log/slog"
	"math"

	_ "image/gif" // register decoders
	_ "image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/mie-tools/mie/internal/apperr"
	"github.com/mie-tools/mie/internal/mediatype"
	"github.com/mie-tools/mie/internal/quality"
)

// Result holds the transcoded bytes and the sizes that drove the
// quality decision.
type Result struct {
	Data           []byte
	Quality        int
	OriginalSize   int
	CompressedSize int
	// Reencoded is false when the fast path returned the original
	// bytes unchanged; the payload then keeps its source format.
	Reencoded bool
}

// Transcoder converts raw image bytes to JPEG. Zero max dimensions
// disable downscaling.
type Transcoder struct {
	MaxWidth  int
	MaxHeight int
	Log       *slog.Logger
}

// New returns a Transcoder with the given dimension limits.
func New(maxWidth, maxHeight int, log *slog.Logger) *Transcoder {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transcoder{MaxWidth: maxWidth, MaxHeight: maxHeight, Log: log}
}

// Transcode re-encodes data as JPEG at the table quality for its
// original size. source is used only to detect vector input by
// extension and for diagnostics.
func (t *Transcoder) Transcode(data []byte, scale int, source string) (*Result, error) {
	origSize := len(data)
	q := quality.Level(origSize, scale)

	// Already-tiny images keep their original bytes: re-encoding at
	// quality 100 would only add generational loss.
	if q == 100 && origSize <= 1024 && t.MaxWidth == 0 && t.MaxHeight == 0 {
		t.Log.Debug("small image, no compression needed", slog.Int("bytes", origSize))
		return &Result{
			Data:           data,
			Quality:        q,
			OriginalSize:   origSize,
			CompressedSize: origSize,
		}, nil
	}

	var img image.Image
	var err error
	if mediatype.IsSVG(source) {
		img, err = rasterizeSVG(data)
		if err != nil {
			t.Log.Error("svg rasterization failed",
				slog.String("source", source), slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %s", apperr.ErrUnsupportedFormat, source)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			t.Log.Error("image decode failed",
				slog.String("source", source), slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotAnImage, source)
		}
	}

	img = t.downscale(img)
	img = flatten(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		t.Log.Error("jpeg encode failed",
			slog.String("source", source), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %s", apperr.ErrEncodingFailed, source)
	}

	return &Result{
		Data:           buf.Bytes(),
		Quality:        q,
		OriginalSize:   origSize,
		CompressedSize: buf.Len(),
		Reencoded:      true,
	}, nil
}

// downscale shrinks img by one uniform factor so it fits within both
// configured maxima. Images within bounds pass through; nothing is
// ever upscaled.
func (t *Transcoder) downscale(img image.Image) image.Image {
	if t.MaxWidth == 0 && t.MaxHeight == 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	factor := 1.0
	if t.MaxWidth > 0 && w > t.MaxWidth {
		factor = math.Min(factor, float64(t.MaxWidth)/float64(w))
	}
	if t.MaxHeight > 0 && h > t.MaxHeight {
		factor = math.Min(factor, float64(t.MaxHeight)/float64(h))
	}
	if factor >= 1 {
		return img
	}

	nw := int(math.Round(float64(w) * factor))
	nh := int(math.Round(float64(h) * factor))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// flatten composites src onto an opaque white background. JPEG has no
// alpha channel; this also normalises paletted images to plain color.
func flatten(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// rasterizeSVG renders vector input to a bitmap at its intrinsic
// viewbox size, falling back to 512x512 when the document declares
// none.
func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w < 1 || h < 1 {
		w, h = 512, 512
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return rgba, nil
}
