package capture

import (
	"errors"
	"image"
	"testing"

	"github.com/bryanchriswhite/CamLink/internal/protocol"
)

type fakeCamera struct {
	openErr  error
	frames   int
	props    map[Property]float64
	released int
	index    int
}

func (f *fakeCamera) Open(index int) error {
	f.index = index
	f.props = map[Property]float64{}
	return f.openErr
}

func (f *fakeCamera) Set(prop Property, value float64) {
	f.props[prop] = value
}

func (f *fakeCamera) Read() (*image.RGBA, bool) {
	if f.frames <= 0 {
		return nil, false
	}
	f.frames--
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), true
}

func (f *fakeCamera) Release() error {
	f.released++
	return nil
}

func TestCameraSourceAppliesConfig(t *testing.T) {
	cam := &fakeCamera{frames: 1}
	src := NewCameraSource("fake", cam, Config{Device: 2, Width: 640, Height: 480, FPS: 30})

	if err := src.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if cam.index != 2 {
		t.Errorf("opened device %d, want 2", cam.index)
	}
	if cam.props[PropFrameWidth] != 640 || cam.props[PropFrameHeight] != 480 || cam.props[PropFPS] != 30 {
		t.Errorf("props = %v", cam.props)
	}
}

func TestCameraSourceReadFailure(t *testing.T) {
	cam := &fakeCamera{frames: 1}
	src := NewCameraSource("fake", cam, Config{})

	if _, err := src.Read(); !errors.Is(err, protocol.ErrCaptureFailure) {
		t.Errorf("Read() before Open error = %v, want ErrCaptureFailure", err)
	}

	src.Open()
	if _, err := src.Read(); err != nil {
		t.Fatalf("first Read() error = %v", err)
	}
	if _, err := src.Read(); !errors.Is(err, protocol.ErrCaptureFailure) {
		t.Errorf("Read() on dry camera error = %v, want ErrCaptureFailure", err)
	}
}

func TestCameraSourceCloseIdempotent(t *testing.T) {
	cam := &fakeCamera{}
	src := NewCameraSource("fake", cam, Config{})
	src.Open()
	src.Close()
	src.Close()
	if cam.released != 1 {
		t.Errorf("Release called %d times, want 1", cam.released)
	}
}

func TestPatternSourceFailAfter(t *testing.T) {
	src := NewPatternSource(Config{Width: 32, Height: 24})
	src.FailAfter = 5
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		frame, err := src.Read()
		if err != nil {
			t.Fatalf("Read() #%d error = %v", i, err)
		}
		if frame.Bounds().Dx() != 32 || frame.Bounds().Dy() != 24 {
			t.Fatalf("frame bounds = %v", frame.Bounds())
		}
	}
	if _, err := src.Read(); !errors.Is(err, protocol.ErrCaptureFailure) {
		t.Errorf("Read() #6 error = %v, want ErrCaptureFailure", err)
	}

	// Reopening resets the budget.
	src.Close()
	src.Open()
	if _, err := src.Read(); err != nil {
		t.Errorf("Read() after reopen error = %v", err)
	}
}

func TestPatternSourceDefaults(t *testing.T) {
	src := NewPatternSource(Config{})
	src.Open()
	defer src.Close()

	frame, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	if frame.Bounds() != image.Rect(0, 0, 640, 480) {
		t.Errorf("bounds = %v", frame.Bounds())
	}
}

func TestRouterFallsBack(t *testing.T) {
	broken := NewCameraSource("camera", &fakeCamera{openErr: errors.New("no device")}, Config{})
	pattern := NewPatternSource(Config{Width: 8, Height: 8})
	r := NewRouter(broken, pattern)

	if err := r.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if r.Name() != "pattern" {
		t.Errorf("Name() = %q, want pattern", r.Name())
	}
	if _, err := r.Read(); err != nil {
		t.Errorf("Read() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := r.Read(); !errors.Is(err, protocol.ErrCaptureFailure) {
		t.Errorf("Read() after Close error = %v", err)
	}
}

func TestRouterNoSources(t *testing.T) {
	broken := NewCameraSource("camera", &fakeCamera{openErr: errors.New("no device")}, Config{})
	if err := NewRouter(broken).Open(); err == nil {
		t.Error("Open() expected error")
	}
	if err := NewRouter().Open(); err == nil {
		t.Error("Open() with no sources expected error")
	}
}
