package output

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/bryanchriswhite/CamLink/internal/logger"
	xdraw "golang.org/x/image/draw"
)

// Renderer draws on top of a frame before it is displayed
type Renderer interface {
	Render(img *image.RGBA) error
}

// Fit scales frame to fit within width x height, keeping its aspect ratio.
// A zero bound leaves that axis unconstrained; frames already inside the
// bounds are returned unchanged.
func Fit(frame *image.RGBA, width, height int) *image.RGBA {
	b := frame.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return frame
	}

	scale := math.Inf(1)
	if width > 0 {
		scale = float64(width) / float64(b.Dx())
	}
	if height > 0 {
		scale = math.Min(scale, float64(height)/float64(b.Dy()))
	}
	if math.IsInf(scale, 1) || scale == 1 {
		return frame
	}

	w := int(math.Round(float64(b.Dx()) * scale))
	h := int(math.Round(float64(b.Dy()) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, b, xdraw.Src, nil)
	return dst
}

// Display scales, annotates and fans frames out to a set of outputs
type Display struct {
	config    Config
	outputs   []Output
	renderers []Renderer

	mu      sync.RWMutex
	running bool
}

// NewDisplay creates a display writing to outputs
func NewDisplay(config Config, outputs ...Output) *Display {
	return &Display{config: config, outputs: outputs}
}

// AddRenderer appends an overlay drawn onto every frame
func (d *Display) AddRenderer(r Renderer) {
	d.mu.Lock()
	d.renderers = append(d.renderers, r)
	d.mu.Unlock()
}

// Start starts every output
func (d *Display) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	for i, out := range d.outputs {
		if err := out.Start(); err != nil {
			for _, started := range d.outputs[:i] {
				started.Stop()
			}
			return fmt.Errorf("failed to start %s: %w", out.Name(), err)
		}
	}
	d.running = true
	return nil
}

// Stop stops every output
func (d *Display) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	var errs []error
	for _, out := range d.outputs {
		if err := out.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteFrame fits the frame to the display size, draws the overlays and
// forwards it. One failing output does not starve the others.
func (d *Display) WriteFrame(frame *image.RGBA) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running {
		return fmt.Errorf("display not running")
	}

	frame = Fit(frame, d.config.Width, d.config.Height)
	for _, r := range d.renderers {
		if err := r.Render(frame); err != nil {
			logger.WithComponent("display").Debug().Err(err).Msg("Overlay render failed")
		}
	}

	var errs []error
	for _, out := range d.outputs {
		if !out.IsRunning() {
			continue
		}
		if err := out.WriteFrame(frame); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", out.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Name returns the output type name
func (d *Display) Name() string {
	return "Display"
}

// IsRunning returns true if the display is active
func (d *Display) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}
