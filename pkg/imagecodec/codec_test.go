package imagecodec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressResizesAndEncodesJPEG(t *testing.T) {
	raw := noisyPNG(t, 400, 200)

	res, err := Compress(bytes.NewReader(raw), Options{MaxUploadBytes: 2 << 20, MaxDimension: 100, TargetBytes: 1 << 20})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.DataURL, DataURLPrefix))
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 50, res.Height)

	data, err := Decode(res.DataURL)
	require.NoError(t, err)
	assert.Len(t, data, res.Bytes)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
}

func TestCompressLowersQualityTowardTarget(t *testing.T) {
	raw := noisyPNG(t, 300, 300)

	loose, err := Compress(bytes.NewReader(raw), Options{MaxUploadBytes: 2 << 20, MaxDimension: 300, TargetBytes: 10 << 20})
	require.NoError(t, err)
	tight, err := Compress(bytes.NewReader(raw), Options{MaxUploadBytes: 2 << 20, MaxDimension: 300, TargetBytes: 1})
	require.NoError(t, err)

	assert.Equal(t, startQuality, loose.Quality)
	assert.Equal(t, minQuality, tight.Quality)
	assert.Less(t, tight.Bytes, loose.Bytes)
}

func TestCompressRejectsOversizeUpload(t *testing.T) {
	raw := noisyPNG(t, 64, 64)
	_, err := Compress(bytes.NewReader(raw), Options{MaxUploadBytes: len(raw) - 1, MaxDimension: 64, TargetBytes: 1 << 20})
	assert.ErrorIs(t, err, ErrTooLarge)
}

// blankPNG encodes a w×h single-color grayscale image. Such files compress
// to a few hundred bytes regardless of dimensions.
func blankPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// withDimensions rewrites the IHDR of a PNG so its header claims w×h pixels.
func withDimensions(raw []byte, w, h int) []byte {
	out := append([]byte(nil), raw...)
	binary.BigEndian.PutUint32(out[16:20], uint32(w))
	binary.BigEndian.PutUint32(out[20:24], uint32(h))
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestCompressRejectsTooManyPixels(t *testing.T) {
	raw := blankPNG(t, 2000, 1500)
	require.Less(t, len(raw), 64<<10)

	_, err := Compress(bytes.NewReader(raw), Options{MaxUploadBytes: 2 << 20, MaxPixels: 1_000_000, MaxDimension: 64, TargetBytes: 1 << 20})
	assert.ErrorIs(t, err, ErrTooLarge)

	res, err := Compress(bytes.NewReader(raw), Options{MaxUploadBytes: 2 << 20, MaxPixels: 3_000_000, MaxDimension: 64, TargetBytes: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, 64, res.Width)
}

func TestCompressChecksDimensionsBeforeDecoding(t *testing.T) {
	// The pixel data is for 1×1; only the header is inflated.
	raw := withDimensions(blankPNG(t, 1, 1), 12000, 12000)

	_, err := Compress(bytes.NewReader(raw), Options{MaxUploadBytes: 2 << 20, MaxDimension: 1280})
	assert.ErrorIs(t, err, ErrTooLarge, "default pixel cap applies")
}

func TestDecodeRequiresCompressedJPEG(t *testing.T) {
	_, err := Decode("https://example.com/a.jpg")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Decode(DataURLPrefix + "%%%")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Decode(DataURLPrefix + base64.StdEncoding.EncodeToString([]byte("plain text")))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCompressRejectsGarbage(t *testing.T) {
	_, err := Compress(strings.NewReader("not an image"), Options{MaxUploadBytes: 1 << 20, MaxDimension: 64, TargetBytes: 1 << 20})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFitKeepsSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 20))
	assert.Same(t, image.Image(img), Fit(img, 100))

	out := Fit(img, 10)
	assert.Equal(t, 5, out.Bounds().Dx())
	assert.Equal(t, 10, out.Bounds().Dy())
}
