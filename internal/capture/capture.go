package capture

import (
	"image"
)

// Source defines the interface for frame producers
type Source interface {
	// Open acquires the underlying device
	Open() error

	// Read captures the next frame as an RGBA raster
	// A device that stops producing frames returns protocol.ErrCaptureFailure
	Read() (*image.RGBA, error)

	// Close releases the device
	Close() error

	// Name returns a human-readable name for this source
	Name() string
}

// Property identifies a camera setting.
type Property int

const (
	PropFrameWidth Property = iota
	PropFrameHeight
	PropFPS
)

// Camera is the capability contract of a capture device. Frames come back
// already converted to RGBA; devices that produce BGR convert at this
// boundary.
type Camera interface {
	Open(index int) error
	Set(prop Property, value float64)
	Read() (*image.RGBA, bool)
	Release() error
}

// Config describes the requested capture mode
type Config struct {
	Device int
	Width  int
	Height int
	FPS    int
}
