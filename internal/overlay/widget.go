package overlay

import (
	"image"
	"image/color"
)

// Widget represents a renderable overlay element
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Render draws the widget onto the provided image at its position
	Render(img *image.RGBA) error

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool

	// SetEnabled sets whether the widget should be rendered
	SetEnabled(enabled bool)
}

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	id      string
	enabled bool
	x       int
	y       int
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, x, y int, opacity float64) *BaseWidget {
	w := &BaseWidget{id: id, enabled: true, x: x, y: y}
	w.SetOpacity(opacity)
	return w
}

// ID returns the widget's unique identifier
func (w *BaseWidget) ID() string {
	return w.id
}

// IsEnabled returns whether the widget should be rendered
func (w *BaseWidget) IsEnabled() bool {
	return w.enabled
}

// SetEnabled sets whether the widget should be rendered
func (w *BaseWidget) SetEnabled(enabled bool) {
	w.enabled = enabled
}

// SetOpacity sets the widget's opacity, clamped to [0, 1]
func (w *BaseWidget) SetOpacity(opacity float64) {
	switch {
	case opacity < 0:
		opacity = 0
	case opacity > 1:
		opacity = 1
	}
	w.opacity = opacity
}

// BlendImage composites src onto dst with its top-left corner at (x, y),
// scaling src alpha by opacity. Pixels outside dst are clipped.
func BlendImage(dst *image.RGBA, src *image.RGBA, x, y int, opacity float64) {
	sb := src.Bounds()
	db := dst.Bounds()

	for sy := sb.Min.Y; sy < sb.Max.Y; sy++ {
		dy := y + sy - sb.Min.Y
		if dy < db.Min.Y || dy >= db.Max.Y {
			continue
		}
		for sx := sb.Min.X; sx < sb.Max.X; sx++ {
			dx := x + sx - sb.Min.X
			if dx < db.Min.X || dx >= db.Max.X {
				continue
			}

			s := src.RGBAAt(sx, sy)
			alpha := float64(s.A) / 255 * opacity
			if alpha <= 0 {
				continue
			}

			d := dst.RGBAAt(dx, dy)
			dst.SetRGBA(dx, dy, color.RGBA{
				R: mix(s.R, d.R, alpha),
				G: mix(s.G, d.G, alpha),
				B: mix(s.B, d.B, alpha),
				A: 255,
			})
		}
	}
}

// mix blends one channel of src over dst with the given coverage
func mix(src, dst uint8, alpha float64) uint8 {
	return uint8(float64(src)*alpha + float64(dst)*(1-alpha) + 0.5)
}
