// Package codec converts between raster frames and the compressed buffers
// carried on the wire.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/bryanchriswhite/CamLink/internal/protocol"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// Encoder compresses a frame for transfer.
type Encoder interface {
	Encode(frame image.Image) ([]byte, error)
}

// Decoder turns a received payload back into a raster.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}

// JPEG encodes and decodes baseline JPEG.
type JPEG struct {
	quality int
	buf     bytes.Buffer
}

// NewJPEG returns a JPEG codec. Out-of-range qualities fall back to
// DefaultQuality.
func NewJPEG(quality int) *JPEG {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &JPEG{quality: quality}
}

// Quality returns the configured encode quality.
func (j *JPEG) Quality() int {
	return j.quality
}

// Encode compresses frame. The returned slice is owned by the caller.
// Not safe for concurrent use.
func (j *JPEG) Encode(frame image.Image) ([]byte, error) {
	j.buf.Reset()
	if err := jpeg.Encode(&j.buf, frame, &jpeg.Options{Quality: j.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	out := make([]byte, j.buf.Len())
	copy(out, j.buf.Bytes())
	return out, nil
}

// Decode parses a JPEG payload into an RGBA raster.
func (j *JPEG) Decode(data []byte) (*image.RGBA, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrDecode, err)
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as *image.RGBA, converting when necessary. Display
// surfaces expect interleaved RGBA.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
