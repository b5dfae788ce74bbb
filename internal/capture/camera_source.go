package capture

import (
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/bryanchriswhite/CamLink/internal/protocol"
)

// CameraSource adapts a Camera into a Source using the configured mode.
type CameraSource struct {
	cam    Camera
	config Config
	name   string

	mu     sync.Mutex
	opened bool
}

// NewCameraSource wraps cam. The camera is not opened until Open.
func NewCameraSource(name string, cam Camera, config Config) *CameraSource {
	return &CameraSource{cam: cam, config: config, name: name}
}

// Open opens the device and applies resolution and rate.
func (s *CameraSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil
	}

	if err := s.cam.Open(s.config.Device); err != nil {
		return fmt.Errorf("failed to open camera %d: %w", s.config.Device, err)
	}

	if s.config.Width > 0 {
		s.cam.Set(PropFrameWidth, float64(s.config.Width))
	}
	if s.config.Height > 0 {
		s.cam.Set(PropFrameHeight, float64(s.config.Height))
	}
	if s.config.FPS > 0 {
		s.cam.Set(PropFPS, float64(s.config.FPS))
	}

	s.opened = true
	logger.WithComponent("capture").Info().
		Str("source", s.name).
		Int("device", s.config.Device).
		Int("width", s.config.Width).
		Int("height", s.config.Height).
		Int("fps", s.config.FPS).
		Msg("Camera opened")
	return nil
}

// Read captures one frame.
func (s *CameraSource) Read() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil, fmt.Errorf("%w: camera not open", protocol.ErrCaptureFailure)
	}

	frame, ok := s.cam.Read()
	if !ok || frame == nil {
		return nil, fmt.Errorf("%w: device %d returned no frame", protocol.ErrCaptureFailure, s.config.Device)
	}
	return frame, nil
}

// Close releases the camera. Safe to call more than once.
func (s *CameraSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}
	s.opened = false
	return s.cam.Release()
}

// Name returns the source name
func (s *CameraSource) Name() string {
	return s.name
}
