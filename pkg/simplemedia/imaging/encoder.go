// Package imaging compresses captured frames into thumbnail images.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	DefaultQuality  = 85
	DefaultMaxWidth = 640
)

// Encoder implements simplemedia.ImageEncoder. Frames wider than MaxWidth are
// scaled down with Lanczos resampling, keeping their aspect ratio.
type Encoder struct {
	Quality  int  // JPEG quality 1-100; zero selects DefaultQuality
	MaxWidth uint // zero keeps the original width
}

// NewEncoder returns an Encoder with the default quality and width.
func NewEncoder() *Encoder {
	return &Encoder{Quality: DefaultQuality, MaxWidth: DefaultMaxWidth}
}

func (e *Encoder) Encode(img image.Image, format simplemedia.ImageFormat) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", simplemedia.ErrEncode)
	}
	if e.MaxWidth > 0 && uint(img.Bounds().Dx()) > e.MaxWidth {
		img = resize.Resize(e.MaxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case simplemedia.ImageFormatJPEG, "":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality()}); err != nil {
			return nil, fmt.Errorf("%w: %w", simplemedia.ErrEncode, err)
		}
	case simplemedia.ImageFormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: %w", simplemedia.ErrEncode, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", simplemedia.ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}

func (e *Encoder) quality() int {
	if e.Quality < 1 || e.Quality > 100 {
		return DefaultQuality
	}
	return e.Quality
}

var _ simplemedia.ImageEncoder = (*Encoder)(nil)
