// Package imaging shrinks food photos into JPEG data URLs small enough to
// keep in the diary.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth  = 800
	DefaultMaxHeight = 800
	DefaultQuality   = 70
	DefaultMaxSizeKB = 500

	// MaxPixels bounds the declared size of an image before it is decoded.
	MaxPixels = 40_000_000
)

var (
	ErrUnsupportedFormat = errors.New("imaging: unsupported image format")
	ErrImageTooLarge     = errors.New("imaging: image dimensions too large")
)

var supported = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Options struct {
	MaxWidth  int
	MaxHeight int
	// Quality is the JPEG quality, 1-100.
	Quality int
}

func DefaultOptions() Options {
	return Options{MaxWidth: DefaultMaxWidth, MaxHeight: DefaultMaxHeight, Quality: DefaultQuality}
}

type Compressor struct {
	opts Options
}

// NewCompressor fills zero options with defaults.
func NewCompressor(opts Options) *Compressor {
	def := DefaultOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	return &Compressor{opts: opts}
}

// FitSize scales w×h to fit the box, keeping the aspect ratio. The longer
// side decides; square images are bounded by height. Images are never
// enlarged.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w > h {
		if w > maxW {
			h = int(math.Round(float64(h) * float64(maxW) / float64(w)))
			w = maxW
		}
	} else {
		if h > maxH {
			w = int(math.Round(float64(w) * float64(maxH) / float64(h)))
			h = maxH
		}
	}
	return max(w, 1), max(h, 1)
}

// Compress decodes data, fits it into the configured box and returns a
// data:image/jpeg;base64 URL.
func (c *Compressor) Compress(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !supported[mt.String()] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), c.opts.MaxWidth, c.opts.MaxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.opts.Quality}); err != nil {
		return "", fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return DataURL("image/jpeg", buf.Bytes()), nil
}

// CompressOrOriginal falls back to the unmodified bytes as a data URL when
// compression fails.
func (c *Compressor) CompressOrOriginal(data []byte) (string, bool) {
	out, err := c.Compress(data)
	if err != nil {
		return DataURL(mimetype.Detect(data).String(), data), false
	}
	return out, true
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a base64 data URL into its media type and payload.
func ParseDataURL(url string) (string, []byte, error) {
	meta, payload, ok := strings.Cut(url, ",")
	if !ok || !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
		return "", nil, errors.New("imaging: not a base64 data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("imaging: bad base64 payload: %w", err)
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	return mime, data, nil
}

// EstimateDataURLSize returns the decoded size in bytes of a base64 data URL
// without decoding it.
func EstimateDataURLSize(url string) int {
	_, payload, ok := strings.Cut(url, ",")
	if !ok {
		payload = url
	}
	return int(math.Ceil(float64(len(payload)) * 0.75))
}

// IsDataURLTooBig reports whether url decodes to more than maxSizeKB.
func IsDataURLTooBig(url string, maxSizeKB int) bool {
	if maxSizeKB <= 0 {
		maxSizeKB = DefaultMaxSizeKB
	}
	return float64(EstimateDataURLSize(url))/1024 > float64(maxSizeKB)
}
