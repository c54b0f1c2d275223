// Package imagecodec shrinks uploaded photos into JPEG data URLs small enough
// to embed in a document.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DataURLPrefix starts every value returned by Compress.
const DataURLPrefix = "data:image/jpeg;base64,"

// DefaultMaxPixels caps decoded images when Options.MaxPixels is unset.
const DefaultMaxPixels = 40_000_000

const (
	startQuality = 85
	minQuality   = 30
	qualityStep  = 10
)

var (
	// ErrTooLarge is returned when the upload exceeds MaxUploadBytes or its
	// dimensions exceed MaxPixels.
	ErrTooLarge = errors.New("image exceeds upload limit")
	// ErrUnsupported is returned for data that is not a decodable image.
	ErrUnsupported = errors.New("unsupported image format")
)

// Options bounds the input and output.
type Options struct {
	MaxUploadBytes int
	MaxPixels      int
	MaxDimension   int
	TargetBytes    int
}

// Result is a compressed image.
type Result struct {
	DataURL string `json:"dataUrl"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bytes   int    `json:"bytes"`
	Quality int    `json:"quality"`
}

// Compress decodes r, scales it to fit MaxDimension and re-encodes it as JPEG,
// lowering quality until the output fits TargetBytes or the floor is reached.
func Compress(r io.Reader, opts Options) (Result, error) {
	if opts.MaxUploadBytes > 0 {
		r = io.LimitReader(r, int64(opts.MaxUploadBytes)+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read image: %w", err)
	}
	if opts.MaxUploadBytes > 0 && len(raw) > opts.MaxUploadBytes {
		return Result{}, ErrTooLarge
	}

	// Headers are checked first so a small, highly compressed file cannot
	// expand into a huge pixel buffer.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return Result{}, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	img := Fit(src, opts.MaxDimension)

	var buf bytes.Buffer
	quality := startQuality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return Result{}, fmt.Errorf("encode jpeg: %w", err)
		}
		if opts.TargetBytes <= 0 || buf.Len() <= opts.TargetBytes || quality <= minQuality {
			break
		}
		quality -= qualityStep
		if quality < minQuality {
			quality = minQuality
		}
	}

	b := img.Bounds()
	return Result{
		DataURL: DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Bytes:   buf.Len(),
		Quality: quality,
	}, nil
}

// Fit scales src down so neither side exceeds maxDim, keeping the aspect
// ratio. Images already within bounds are returned unchanged.
func Fit(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return src
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Decode returns the JPEG bytes of a data URL produced by Compress.
func Decode(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, DataURLPrefix) {
		return nil, ErrUnsupported
	}
	data, err := base64.StdEncoding.DecodeString(dataURL[len(DataURLPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return data, nil
}
