// Package window shows the received stream in a native desktop window.
package window

import (
	"fmt"
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/bryanchriswhite/CamLink/internal/stream"
)

// Window is an output.Output that renders frames into a fyne window and
// shows status events below the picture
type Window struct {
	app    fyne.App
	win    fyne.Window
	img    *canvas.Image
	status *widget.Label

	mu      sync.RWMutex
	running bool
}

// New creates the window. Run must be called from the main goroutine.
func New(title string, width, height int) *Window {
	a := app.New()
	win := a.NewWindow(title)

	img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest

	status := widget.NewLabel("Disconnected")
	win.SetContent(container.NewBorder(nil, status, nil, nil, img))
	if width > 0 && height > 0 {
		win.Resize(fyne.NewSize(float32(width), float32(height)))
	}

	return &Window{app: a, win: win, img: img, status: status}
}

// OnClosed registers fn to run when the user closes the window
func (w *Window) OnClosed(fn func()) {
	w.win.SetOnClosed(func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		fn()
	})
}

// Run shows the window and blocks until the application quits
func (w *Window) Run() {
	w.win.ShowAndRun()
}

// Start marks the window as accepting frames
func (w *Window) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = true
	return nil
}

// Stop quits the application
func (w *Window) Stop() error {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		w.app.Quit()
	}
	return nil
}

// WriteFrame replaces the displayed picture
func (w *Window) WriteFrame(frame *image.RGBA) error {
	if !w.IsRunning() {
		return fmt.Errorf("window closed")
	}
	w.img.Image = frame
	w.img.Refresh()
	return nil
}

// Report shows a status event under the picture
func (w *Window) Report(ev stream.Event) {
	text := ev.Message
	if ev.Remote != "" {
		text = fmt.Sprintf("%s (%s)", ev.Message, ev.Remote)
	}
	w.status.SetText(text)
}

// Name returns the output type name
func (w *Window) Name() string {
	return "Native Window"
}

// IsRunning returns true while the window accepts frames
func (w *Window) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
