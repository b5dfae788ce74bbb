package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const lineHeight = 13 // basicfont.Face7x13

// TextWidget draws one or more lines of text, optionally on a background box.
// Lines come from a provider so the widget can show live values.
type TextWidget struct {
	*BaseWidget
	lines     func() []string
	textColor color.RGBA
	bgColor   *color.RGBA
	padding   int
}

// NewTextWidget creates a widget showing fixed text
func NewTextWidget(id, text string, x, y int) *TextWidget {
	return NewDynamicTextWidget(id, x, y, func() []string { return []string{text} })
}

// NewDynamicTextWidget creates a widget whose lines are computed per frame
func NewDynamicTextWidget(id string, x, y int, lines func() []string) *TextWidget {
	return &TextWidget{
		BaseWidget: NewBaseWidget(id, x, y, 1.0),
		lines:      lines,
		textColor:  color.RGBA{255, 255, 255, 255},
		bgColor:    &color.RGBA{0, 0, 0, 160},
		padding:    4,
	}
}

// SetBackground sets the background color (nil for transparent)
func (w *TextWidget) SetBackground(c *color.RGBA) {
	w.bgColor = c
}

// Render draws the text widget
func (w *TextWidget) Render(img *image.RGBA) error {
	if !w.IsEnabled() {
		return nil
	}
	lines := w.lines()
	if len(lines) == 0 {
		return nil
	}

	face := basicfont.Face7x13
	measure := &font.Drawer{Face: face}

	textWidth := 0
	for _, line := range lines {
		if px := measure.MeasureString(line).Ceil(); px > textWidth {
			textWidth = px
		}
	}
	if textWidth == 0 {
		return nil
	}

	box := image.NewRGBA(image.Rect(0, 0, textWidth+w.padding*2, len(lines)*lineHeight+w.padding*2))
	if w.bgColor != nil {
		draw.Draw(box, box.Bounds(), image.NewUniform(*w.bgColor), image.Point{}, draw.Src)
	}

	d := &font.Drawer{
		Dst:  box,
		Src:  image.NewUniform(w.textColor),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(w.padding, w.padding+(i+1)*lineHeight-2)
		d.DrawString(line)
	}

	BlendImage(img, box, w.x, w.y, w.opacity)
	return nil
}
