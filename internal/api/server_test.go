package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/output"
	"github.com/bryanchriswhite/CamLink/internal/protocol"
	"github.com/bryanchriswhite/CamLink/internal/stream"
	"github.com/gorilla/websocket"
)

type fakeClient struct {
	mu          sync.Mutex
	hosts       []string
	connectErr  error
	state       stream.ClientState
	disconnects int
}

func (c *fakeClient) Connect(ctx context.Context, host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hosts = append(c.hosts, host)
	if c.connectErr != nil {
		return c.connectErr
	}
	c.state = stream.StateOnline
	return nil
}

func (c *fakeClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.state = stream.StateDisconnected
	return nil
}

func (c *fakeClient) Stats() stream.ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	if state == "" {
		state = stream.StateDisconnected
	}
	return stream.ClientStats{State: state}
}

func newTestServer(t *testing.T) (*Server, *fakeClient, *output.MJPEGOutput, *stream.StatusLog) {
	t.Helper()
	client := &fakeClient{}
	feed := output.NewMJPEGOutput(output.Config{Quality: 80})
	if err := feed.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { feed.Stop() })
	events := stream.NewStatusLog(10)
	return NewServer(client, feed, events), client, feed, events
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := do(t, s, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func TestIndexServesViewerPage(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := do(t, s, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`src="/stream"`, `id="map"`, `/api/connect`, `/api/events`} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %s", want)
		}
	}
}

func TestIndexPrefillsConnectForm(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	s.SetConnectDefaults("cam.local", 9000)

	body := do(t, s, "GET", "/", "").Body.String()
	if !strings.Contains(body, `value="cam.local"`) {
		t.Error("host not pre-filled")
	}
	if !strings.Contains(body, `value="9000"`) {
		t.Error("port not pre-filled")
	}
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantHost string
	}{
		{"host and port", `{"host":"10.0.0.2","port":2000}`, nil, http.StatusOK, "10.0.0.2:2000"},
		{"host only", `{"host":"cam.local"}`, nil, http.StatusOK, "cam.local"},
		{"connect failure", `{"host":"10.0.0.2"}`, fmt.Errorf("%w: refused", protocol.ErrConnectFailure), http.StatusBadGateway, "10.0.0.2"},
		{"already connected", `{"host":"10.0.0.2"}`, stream.ErrAlreadyConnected, http.StatusConflict, "10.0.0.2"},
		{"bad json", `{`, nil, http.StatusBadRequest, ""},
		{"bad port", `{"host":"a","port":70000}`, nil, http.StatusBadRequest, ""},
		{"port twice", `{"host":"10.0.0.2:2000","port":3000}`, nil, http.StatusBadRequest, ""},
		{"host with port", `{"host":"10.0.0.2:2000"}`, nil, http.StatusOK, "10.0.0.2:2000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, client, _, _ := newTestServer(t)
			client.connectErr = tt.err

			rec := do(t, s, "POST", "/api/connect", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantHost == "" {
				if len(client.hosts) != 0 {
					t.Errorf("Connect called with %v", client.hosts)
				}
				return
			}
			if len(client.hosts) != 1 || client.hosts[0] != tt.wantHost {
				t.Errorf("Connect hosts = %v, want [%s]", client.hosts, tt.wantHost)
			}
		})
	}
}

func TestDisconnectAndStatus(t *testing.T) {
	s, client, _, _ := newTestServer(t)
	do(t, s, "POST", "/api/connect", `{"host":"x"}`)

	var status StatusResponse
	rec := do(t, s, "GET", "/api/status", "")
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Client.State != stream.StateOnline {
		t.Errorf("state = %s, want connected", status.Client.State)
	}
	if !status.Video.Running {
		t.Error("video feed should report running")
	}

	rec = do(t, s, "POST", "/api/disconnect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if client.disconnects != 1 {
		t.Errorf("disconnects = %d", client.disconnects)
	}

}

func TestWrongMethod(t *testing.T) {
	s, client, _, _ := newTestServer(t)

	tests := []struct {
		method, path, allow string
	}{
		{"GET", "/api/connect", "POST"},
		{"DELETE", "/api/disconnect", "POST"},
		{"POST", "/api/status", "GET"},
		{"POST", "/", "GET"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, "")
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want 405", rec.Code)
			}
			if got := rec.Header().Get("Allow"); got != tt.allow {
				t.Errorf("Allow = %q, want %q", got, tt.allow)
			}
		})
	}

	if len(client.hosts) != 0 || client.disconnects != 0 {
		t.Error("handlers ran for a rejected method")
	}
	if rec := do(t, s, "GET", "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestSnapshot(t *testing.T) {
	s, _, feed, _ := newTestServer(t)

	if rec := do(t, s, "GET", "/api/snapshot", ""); rec.Code != http.StatusNotFound {
		t.Errorf("snapshot before first frame status = %d, want 404", rec.Code)
	}

	if err := feed.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatal(err)
	}
	rec := do(t, s, "GET", "/api/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0xFF, 0xD8}) {
		t.Error("snapshot is not a JPEG")
	}
}

func TestRecentEvents(t *testing.T) {
	s, _, _, events := newTestServer(t)
	events.Report(stream.Event{Kind: stream.EventListening, Message: "listening"})

	var got []stream.Event
	rec := do(t, s, "GET", "/api/events/recent", "")
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Kind != stream.EventListening {
		t.Errorf("events = %+v", got)
	}
}

func TestEventsWebsocket(t *testing.T) {
	s, _, _, events := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	events.Report(stream.Event{Kind: stream.EventConnectFailure, Message: "could not connect"})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev stream.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != stream.EventConnectFailure {
		t.Errorf("backlog event kind = %s", ev.Kind)
	}

	// The backlog is sent after subscribing, so live events are not missed
	events.Report(stream.Event{Kind: stream.EventDecodeError, Message: "bad frame"})
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != stream.EventDecodeError {
		t.Errorf("live event kind = %s", ev.Kind)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(0); err != nil {
		t.Errorf("Start() after Shutdown error = %v", err)
	}
}
