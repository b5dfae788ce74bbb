package output

import (
	"fmt"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/codec"
	"github.com/bryanchriswhite/CamLink/internal/logger"
)

// MJPEGOutput re-serves received frames as Motion JPEG over HTTP so the
// viewer page can show the stream in an <img> tag
type MJPEGOutput struct {
	config  Config
	encoder *codec.JPEG
	running bool
	mu      sync.RWMutex

	// Latest encoded frame
	frameMu    sync.RWMutex
	latest     []byte
	lastUpdate time.Time

	// Connected browsers
	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	// Stats
	frameCount uint64
	startTime  time.Time
}

// MJPEGStats is a snapshot of the MJPEG output counters
type MJPEGStats struct {
	Running    bool      `json:"running"`
	Frames     uint64    `json:"frames"`
	Clients    int       `json:"clients"`
	FPS        float64   `json:"fps"`
	LastUpdate time.Time `json:"last_update"`
}

// NewMJPEGOutput creates a new MJPEG stream output
func NewMJPEGOutput(config Config) *MJPEGOutput {
	return &MJPEGOutput{
		config:  config,
		encoder: codec.NewJPEG(config.Quality),
		clients: make(map[chan []byte]struct{}),
	}
}

// Start initializes the MJPEG output
// Note: The HTTP handler is registered separately via GetHTTPHandler()
func (m *MJPEGOutput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("MJPEG output already running")
	}

	m.running = true
	m.startTime = time.Now()
	m.frameCount = 0

	logger.WithComponent("mjpeg").Info().
		Int("quality", m.encoder.Quality()).
		Msg("MJPEG output started")
	return nil
}

// Stop cleanly shuts down the output
func (m *MJPEGOutput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false

	// Close all client connections
	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("mjpeg").Info().Uint64("frames", m.frameCount).Msg("MJPEG output stopped")
	return nil
}

// WriteFrame encodes the frame and sends it to all connected browsers
func (m *MJPEGOutput) WriteFrame(frame *image.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return fmt.Errorf("MJPEG output not running")
	}

	jpegData, err := m.encoder.Encode(frame)
	if err != nil {
		return err
	}

	m.frameMu.Lock()
	m.latest = jpegData
	m.lastUpdate = time.Now()
	m.frameMu.Unlock()

	m.frameCount++

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- jpegData:
		default:
			// Client is slow, skip this frame
		}
	}
	m.clientsMu.RUnlock()

	return nil
}

// Snapshot returns the most recent encoded frame, or nil before the first
func (m *MJPEGOutput) Snapshot() []byte {
	m.frameMu.RLock()
	defer m.frameMu.RUnlock()
	return m.latest
}

// Name returns the output type name
func (m *MJPEGOutput) Name() string {
	return "MJPEG HTTP Stream"
}

// IsRunning returns true if the output is active
func (m *MJPEGOutput) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Stats returns the current counters
func (m *MJPEGOutput) Stats() MJPEGStats {
	m.mu.RLock()
	running := m.running
	frameCount := m.frameCount
	startTime := m.startTime
	m.mu.RUnlock()

	m.frameMu.RLock()
	lastUpdate := m.lastUpdate
	m.frameMu.RUnlock()

	m.clientsMu.RLock()
	clientCount := len(m.clients)
	m.clientsMu.RUnlock()

	var fps float64
	if running && !startTime.IsZero() {
		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			fps = float64(frameCount) / elapsed
		}
	}

	return MJPEGStats{
		Running:    running,
		Frames:     frameCount,
		Clients:    clientCount,
		FPS:        fps,
		LastUpdate: lastUpdate,
	}
}

// GetHTTPHandler returns an http.Handler for the MJPEG stream
// Mount this at /stream or similar endpoint
func (m *MJPEGOutput) GetHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.IsRunning() {
			http.Error(w, "stream not running", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("Connection", "close")

		frameChan := make(chan []byte, 2)

		m.clientsMu.Lock()
		m.clients[frameChan] = struct{}{}
		clientCount := len(m.clients)
		m.clientsMu.Unlock()

		log := logger.WithComponent("mjpeg")
		log.Info().Int("clients", clientCount).Msg("Viewer connected")

		defer func() {
			m.clientsMu.Lock()
			if _, ok := m.clients[frameChan]; ok {
				delete(m.clients, frameChan)
			}
			clientCount := len(m.clients)
			m.clientsMu.Unlock()
			log.Info().Int("clients", clientCount).Msg("Viewer disconnected")
		}()

		// Start with the last frame so a paused stream is not blank
		if latest := m.Snapshot(); latest != nil {
			if err := writePart(w, latest); err != nil {
				return
			}
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case jpegData, ok := <-frameChan:
				if !ok {
					return
				}
				if err := writePart(w, jpegData); err != nil {
					return
				}
			}
		}
	}
}

// GetSnapshotHandler serves the latest frame as a single JPEG
func (m *MJPEGOutput) GetSnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest := m.Snapshot()
		if latest == nil {
			http.Error(w, "no frame received yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(latest)
	}
}

func writePart(w http.ResponseWriter, jpegData []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
		return err
	}
	if _, err := w.Write(jpegData); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
