package output

import (
	"image"
)

// Output defines the interface for frame display surfaces.
// The stream client writes every decoded frame to one of these:
// - MJPEG HTTP stream for the web viewer
// - native window
// - a Display fanning out to several of them
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame sends a frame to the output
	// The image is expected to be in RGBA format
	WriteFrame(frame *image.RGBA) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	Width   int
	Height  int
	Quality int
}
