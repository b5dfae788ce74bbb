package overlay

import (
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/stream"
)

// rateWindow is how far apart two samples must be before fps is recomputed
const rateWindow = time.Second

// StatusLines renders client stats as overlay lines: connection state,
// remote, received fps and decode errors.
type StatusLines struct {
	stats func() stream.ClientStats
	now   func() time.Time

	mu         sync.Mutex
	lastFrames uint64
	lastSample time.Time
	fps        float64
}

// NewStatusLines reads stats from fn on every frame
func NewStatusLines(fn func() stream.ClientStats) *StatusLines {
	return &StatusLines{stats: fn, now: time.Now}
}

// Lines returns the current overlay text
func (s *StatusLines) Lines() []string {
	st := s.stats()

	s.mu.Lock()
	now := s.now()
	switch {
	case s.lastSample.IsZero() || st.FramesReceived < s.lastFrames:
		s.lastSample = now
		s.lastFrames = st.FramesReceived
		s.fps = 0
	case now.Sub(s.lastSample) >= rateWindow:
		s.fps = float64(st.FramesReceived-s.lastFrames) / now.Sub(s.lastSample).Seconds()
		s.lastSample = now
		s.lastFrames = st.FramesReceived
	}
	fps := s.fps
	s.mu.Unlock()

	state := string(st.State)
	if st.Remote != "" {
		state = fmt.Sprintf("%s %s", state, st.Remote)
	}
	lines := []string{state, fmt.Sprintf("%.1f fps  %d frames", fps, st.FramesReceived)}
	if st.DecodeErrors > 0 {
		lines = append(lines, fmt.Sprintf("%d decode errors", st.DecodeErrors))
	}
	return lines
}

// NewStatusWidget draws StatusLines in the top-left corner
func NewStatusWidget(fn func() stream.ClientStats) *TextWidget {
	return NewDynamicTextWidget("status", 8, 8, NewStatusLines(fn).Lines)
}
