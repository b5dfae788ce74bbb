package capture

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/protocol"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PatternSource generates a moving test pattern. It stands in for a camera
// when none is attached.
type PatternSource struct {
	config Config

	// FailAfter makes Read fail with ErrCaptureFailure once this many frames
	// have been produced since Open. Zero never fails.
	FailAfter int

	mu       sync.Mutex
	open     bool
	produced int
	total    uint64
	ticker   *time.Ticker
	done     chan struct{}
}

// NewPatternSource returns a pattern source producing frames of the
// configured size, paced at config.FPS when positive.
func NewPatternSource(config Config) *PatternSource {
	if config.Width <= 0 {
		config.Width = 640
	}
	if config.Height <= 0 {
		config.Height = 480
	}
	return &PatternSource{config: config}
}

// Open starts the pattern clock
func (p *PatternSource) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return nil
	}
	p.open = true
	p.produced = 0
	p.done = make(chan struct{})
	if p.config.FPS > 0 {
		p.ticker = time.NewTicker(time.Second / time.Duration(p.config.FPS))
	}
	return nil
}

// Read renders the next frame
func (p *PatternSource) Read() (*image.RGBA, error) {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: pattern source not open", protocol.ErrCaptureFailure)
	}
	if p.FailAfter > 0 && p.produced >= p.FailAfter {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: pattern source exhausted after %d frames", protocol.ErrCaptureFailure, p.produced)
	}
	ticker, done := p.ticker, p.done
	p.produced++
	p.total++
	n := p.total
	p.mu.Unlock()

	if ticker != nil {
		select {
		case <-ticker.C:
		case <-done:
			return nil, fmt.Errorf("%w: pattern source closed", protocol.ErrCaptureFailure)
		}
	}
	return p.render(n), nil
}

func (p *PatternSource) render(n uint64) *image.RGBA {
	w, h := p.config.Width, p.config.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	bar := int(n*4) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 96, 255}
			if x >= bar && x < bar+16 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{0, 0, 0, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(8, 20),
	}
	d.DrawString(fmt.Sprintf("frame %d", n))
	return img
}

// Close stops the pattern clock
func (p *PatternSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return nil
	}
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	close(p.done)
	p.open = false
	return nil
}

// Name returns the source name
func (p *PatternSource) Name() string {
	return "pattern"
}
