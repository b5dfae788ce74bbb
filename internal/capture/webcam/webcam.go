// Package webcam implements capture.Camera over an OpenCV VideoCapture.
package webcam

import (
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/CamLink/internal/capture"
	"github.com/bryanchriswhite/CamLink/internal/logger"
	"gocv.io/x/gocv"
)

// Device is a local camera opened through OpenCV
type Device struct {
	mu  sync.Mutex
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// New returns an unopened device
func New() *Device {
	return &Device{}
}

// NewSource returns a capture.Source backed by the camera at config.Device.
func NewSource(config capture.Config) capture.Source {
	return capture.NewCameraSource(fmt.Sprintf("webcam:%d", config.Device), New(), config)
}

// Open opens the camera at index
func (d *Device) Open(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cap != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return fmt.Errorf("open video capture: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("video capture %d did not open", index)
	}

	// Keep only the freshest frame queued in the driver.
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	d.cap = vc
	d.mat = gocv.NewMat()
	return nil
}

// Set applies a capture property
func (d *Device) Set(prop capture.Property, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cap == nil {
		return
	}

	switch prop {
	case capture.PropFrameWidth:
		d.cap.Set(gocv.VideoCaptureFrameWidth, value)
	case capture.PropFrameHeight:
		d.cap.Set(gocv.VideoCaptureFrameHeight, value)
	case capture.PropFPS:
		d.cap.Set(gocv.VideoCaptureFPS, value)
	}

	logger.WithComponent("webcam").Debug().
		Int("prop", int(prop)).
		Float64("requested", value).
		Msg("Camera property set")
}

// Read grabs one frame. OpenCV delivers BGR; ToImage converts it to RGBA.
func (d *Device) Read() (*image.RGBA, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cap == nil {
		return nil, false
	}
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, false
	}

	img, err := d.mat.ToImage()
	if err != nil {
		logger.WithComponent("webcam").Warn().Err(err).Msg("Failed to convert frame")
		return nil, false
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		logger.WithComponent("webcam").Warn().
			Str("type", fmt.Sprintf("%T", img)).
			Msg("Unexpected frame type from camera")
		return nil, false
	}
	return rgba, true
}

// Release closes the camera
func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cap == nil {
		return nil
	}
	d.mat.Close()
	err := d.cap.Close()
	d.cap = nil
	return err
}
