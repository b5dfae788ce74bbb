package output

import (
	"bufio"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeOutput struct {
	name    string
	running bool
	frames  []*image.RGBA
	err     error
}

func (f *fakeOutput) Start() error    { f.running = true; return nil }
func (f *fakeOutput) Stop() error     { f.running = false; return nil }
func (f *fakeOutput) Name() string    { return f.name }
func (f *fakeOutput) IsRunning() bool { return f.running }
func (f *fakeOutput) WriteFrame(frame *image.RGBA) error {
	f.frames = append(f.frames, frame)
	return f.err
}

type countingRenderer struct{ calls int }

func (c *countingRenderer) Render(img *image.RGBA) error {
	c.calls++
	return nil
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"no bounds", 640, 480, 0, 0, 640, 480},
		{"downscale width bound", 1280, 960, 640, 0, 640, 480},
		{"downscale both keeps aspect", 1280, 720, 640, 640, 640, 360},
		{"height limited", 640, 480, 1000, 240, 320, 240},
		{"upscale", 320, 240, 640, 480, 640, 480},
		{"exact", 640, 480, 640, 480, 640, 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), tt.maxW, tt.maxH)
			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Errorf("Fit() = %dx%d, want %dx%d", got.Bounds().Dx(), got.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDisplayFansOut(t *testing.T) {
	a := &fakeOutput{name: "a"}
	b := &fakeOutput{name: "b", err: errors.New("boom")}
	r := &countingRenderer{}

	d := NewDisplay(Config{Width: 32}, a, b)
	d.AddRenderer(r)

	if err := d.WriteFrame(image.NewRGBA(image.Rect(0, 0, 64, 64))); err == nil {
		t.Error("WriteFrame() before Start expected error")
	}

	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	err := d.WriteFrame(image.NewRGBA(image.Rect(0, 0, 64, 64)))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("WriteFrame() error = %v, want output b's error", err)
	}
	if len(a.frames) != 1 || len(b.frames) != 1 {
		t.Fatalf("frames a=%d b=%d, want 1 each", len(a.frames), len(b.frames))
	}
	if a.frames[0].Bounds().Dx() != 32 {
		t.Errorf("frame not fitted: %v", a.frames[0].Bounds())
	}
	if r.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", r.calls)
	}

	d.Stop()
	if a.running || b.running {
		t.Error("Stop() did not stop outputs")
	}
}

func TestMJPEGSnapshot(t *testing.T) {
	m := NewMJPEGOutput(Config{Quality: 70})
	if err := m.WriteFrame(image.NewRGBA(image.Rect(0, 0, 8, 8))); err == nil {
		t.Error("WriteFrame() before Start expected error")
	}

	m.Start()
	defer m.Stop()

	rec := httptest.NewRecorder()
	m.GetSnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("snapshot before first frame status = %d", rec.Code)
	}

	if err := m.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 12))); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	m.GetSnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", rec.Code)
	}
	img, err := jpeg.Decode(rec.Body)
	if err != nil {
		t.Fatalf("snapshot is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("snapshot bounds = %v", img.Bounds())
	}

	if stats := m.Stats(); stats.Frames != 1 || !stats.Running {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMJPEGStreamHandler(t *testing.T) {
	m := NewMJPEGOutput(Config{})
	m.Start()
	defer m.Stop()
	m.WriteFrame(image.NewRGBA(image.Rect(0, 0, 8, 8)))

	srv := httptest.NewServer(m.GetHTTPHandler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q", ct)
	}

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(line) != "--frame" {
		t.Errorf("first line = %q, want boundary", line)
	}
}
