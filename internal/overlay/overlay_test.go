package overlay

import (
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/stream"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestBlendImage(t *testing.T) {
	dst := solid(4, 4, color.RGBA{0, 0, 0, 255})
	src := solid(2, 2, color.RGBA{200, 100, 50, 255})

	BlendImage(dst, src, 3, 3, 1.0)
	if got := dst.RGBAAt(3, 3); got != (color.RGBA{200, 100, 50, 255}) {
		t.Errorf("opaque blend = %v", got)
	}
	if got := dst.RGBAAt(2, 2); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("pixel outside src changed: %v", got)
	}

	dst = solid(2, 2, color.RGBA{0, 0, 0, 255})
	BlendImage(dst, src, 0, 0, 0.5)
	if got := dst.RGBAAt(0, 0); got.R != 100 || got.G != 50 {
		t.Errorf("half blend = %v", got)
	}
}

func TestTextWidgetDrawsPixels(t *testing.T) {
	img := solid(200, 60, color.RGBA{0, 0, 0, 255})
	w := NewTextWidget("caption", "CONNECTED", 5, 5)
	w.SetBackground(nil)

	if err := w.Render(img); err != nil {
		t.Fatal(err)
	}

	lit := 0
	for y := 0; y < 60; y++ {
		for x := 0; x < 200; x++ {
			if img.RGBAAt(x, y).R > 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("no text pixels drawn")
	}
}

func TestTextWidgetDisabled(t *testing.T) {
	img := solid(50, 20, color.RGBA{0, 0, 0, 255})
	w := NewTextWidget("caption", "x", 0, 0)
	w.SetEnabled(false)
	w.Render(img)
	if img.RGBAAt(2, 2) != (color.RGBA{0, 0, 0, 255}) {
		t.Error("disabled widget drew on the frame")
	}
}

func TestManagerOrderingAndToggle(t *testing.T) {
	m := NewManager()
	var order []string
	for _, id := range []string{"a", "b"} {
		id := id
		w := NewDynamicTextWidget(id, 0, 0, func() []string {
			order = append(order, id)
			return nil
		})
		if err := m.AddWidget(w); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.AddWidget(NewTextWidget("a", "dup", 0, 0)); err == nil {
		t.Error("AddWidget() with duplicate id expected error")
	}

	img := solid(10, 10, color.RGBA{})
	m.Render(img)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("render order = %v", order)
	}

	m.SetEnabled(false)
	m.Render(img)
	if len(order) != 2 {
		t.Error("disabled manager rendered widgets")
	}
}

func TestStatusLines(t *testing.T) {
	stats := stream.ClientStats{State: stream.StateOnline, Remote: "10.0.0.2:12345"}
	now := time.Unix(1000, 0)

	s := NewStatusLines(func() stream.ClientStats { return stats })
	s.now = func() time.Time { return now }

	lines := s.Lines()
	if lines[0] != "connected 10.0.0.2:12345" {
		t.Errorf("state line = %q", lines[0])
	}

	stats.FramesReceived = 30
	now = now.Add(time.Second)
	lines = s.Lines()
	if !strings.HasPrefix(lines[1], "30.0 fps") {
		t.Errorf("rate line = %q", lines[1])
	}
	if len(lines) != 2 {
		t.Errorf("unexpected lines %v", lines)
	}

	stats.DecodeErrors = 2
	lines = s.Lines()
	if len(lines) != 3 || lines[2] != "2 decode errors" {
		t.Errorf("lines = %v", lines)
	}
}
