package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/codec"
	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/bryanchriswhite/CamLink/internal/protocol"
)

// DefaultTickInterval is the receive schedule of the client
const DefaultTickInterval = 30 * time.Millisecond

// ErrAlreadyConnected is returned by Connect while a connection is active
var ErrAlreadyConnected = errors.New("already connected")

// FrameSink receives decoded frames for display
type FrameSink interface {
	WriteFrame(frame *image.RGBA) error
}

// ClientState is the connection state of the client
type ClientState string

const (
	StateDisconnected ClientState = "disconnected"
	StateOnline       ClientState = "connected"
)

// ClientConfig holds stream client settings
type ClientConfig struct {
	// Port is used when the host passed to Connect carries none
	Port int

	// TickInterval is the receive schedule. One frame is read per tick.
	TickInterval time.Duration

	// MaxFrameSize rejects headers announcing more bytes than this. Zero
	// accepts anything the length field can express.
	MaxFrameSize uint32
}

// ClientStats is a snapshot of client counters
type ClientStats struct {
	State          ClientState `json:"state"`
	Remote         string      `json:"remote,omitempty"`
	FramesReceived uint64      `json:"frames_received"`
	BytesReceived  uint64      `json:"bytes_received"`
	DecodeErrors   uint64      `json:"decode_errors"`
	LastFrame      time.Time   `json:"last_frame,omitempty"`
}

// Client connects to a stream server and renders one frame per tick.
//
// Ticks run on a single goroutine. A tick that blocks longer than the
// interval delays the next one; ticks never overlap or queue.
type Client struct {
	config  ClientConfig
	decoder codec.Decoder
	sink    FrameSink
	status  StatusSink

	mu     sync.Mutex
	conn   net.Conn
	reader *protocol.Reader
	remote string
	cancel context.CancelFunc
	done   chan struct{}

	tickMu sync.Mutex

	framesReceived atomic.Uint64
	bytesReceived  atomic.Uint64
	decodeErrors   atomic.Uint64
	lastFrame      atomic.Int64
}

// NewClient creates a disconnected client
func NewClient(config ClientConfig, decoder codec.Decoder, sink FrameSink) *Client {
	if config.Port == 0 {
		config.Port = protocol.DefaultPort
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	return &Client{
		config:  config,
		decoder: decoder,
		sink:    sink,
		status:  discardStatus{},
	}
}

// SetStatusSink sets where connection and frame errors are reported
func (c *Client) SetStatusSink(sink StatusSink) {
	if sink == nil {
		sink = discardStatus{}
	}
	c.status = sink
}

// Connect dials host (with the configured port unless host names one) and
// starts the receive schedule. A failed attempt leaves the client
// disconnected; nothing is retried.
func (c *Client) Connect(ctx context.Context, host string) error {
	log := logger.WithComponent("stream-client")

	if host == "" {
		err := fmt.Errorf("%w: host is required", protocol.ErrConnectFailure)
		c.status.Report(ErrorEvent(err, ""))
		return err
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(c.config.Port))
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", protocol.ErrConnectFailure, addr, err)
		log.Warn().Err(err).Str("addr", addr).Msg("Connection failed")
		c.status.Report(ErrorEvent(err, addr))
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		cancel()
		conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.reader = protocol.NewReader(conn, c.config.MaxFrameSize)
	c.remote = addr
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	log.Info().Str("addr", addr).Msg("Connected to server")
	c.status.Report(Event{Time: time.Now(), Kind: EventConnected, Message: "connected to server at " + addr, Remote: addr})

	go c.run(loopCtx, done)
	return nil
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick performs one receive-and-render cycle. It is a no-op while
// disconnected. Read errors leave the stream unsynchronised, so the
// connection is dropped; a payload that fails to decode only loses that
// frame.
func (c *Client) Tick() error {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.mu.Lock()
	conn, reader, remote := c.conn, c.reader, c.remote
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	payload, err := reader.ReadFrame()
	if err != nil {
		if c.detach(conn) {
			logger.WithComponent("stream-client").Warn().Err(err).Str("addr", remote).Msg("Video reception failed")
			c.status.Report(ErrorEvent(err, remote))
		}
		return err
	}
	c.bytesReceived.Add(uint64(protocol.HeaderSize + len(payload)))

	frame, err := c.decoder.Decode(payload)
	if err != nil {
		if !errors.Is(err, protocol.ErrDecode) {
			err = fmt.Errorf("%w: %v", protocol.ErrDecode, err)
		}
		c.decodeErrors.Add(1)
		logger.WithComponent("stream-client").Warn().Err(err).Int("bytes", len(payload)).Msg("Dropping undecodable frame")
		c.status.Report(ErrorEvent(err, remote))
		return err
	}

	c.framesReceived.Add(1)
	c.lastFrame.Store(time.Now().UnixNano())

	if err := c.sink.WriteFrame(frame); err != nil {
		logger.WithComponent("stream-client").Debug().Err(err).Msg("Frame sink rejected frame")
		return err
	}
	return nil
}

// detach drops conn if it is still the active connection and reports
// whether it was
func (c *Client) detach(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		return false
	}
	c.conn.Close()
	c.conn = nil
	c.reader = nil
	c.remote = ""
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.done = nil
	return true
}

// Disconnect stops the schedule and closes the socket. Calling it when
// already disconnected does nothing.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn, cancel, done, remote := c.conn, c.cancel, c.done, c.remote
	c.conn = nil
	c.reader = nil
	c.remote = ""
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	if cancel != nil {
		cancel()
	}
	// Closing the socket unblocks a tick stuck in a read.
	err := conn.Close()
	if done != nil {
		<-done
	}

	logger.WithComponent("stream-client").Info().Str("addr", remote).Msg("Disconnected from server")
	c.status.Report(Event{Time: time.Now(), Kind: EventDisconnected, Message: "disconnected", Remote: remote})

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// State returns the connection state
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return StateDisconnected
	}
	return StateOnline
}

// Stats returns a snapshot of the client counters
func (c *Client) Stats() ClientStats {
	c.mu.Lock()
	remote := c.remote
	state := StateDisconnected
	if c.conn != nil {
		state = StateOnline
	}
	c.mu.Unlock()

	stats := ClientStats{
		State:          state,
		Remote:         remote,
		FramesReceived: c.framesReceived.Load(),
		BytesReceived:  c.bytesReceived.Load(),
		DecodeErrors:   c.decodeErrors.Load(),
	}
	if ns := c.lastFrame.Load(); ns != 0 {
		stats.LastFrame = time.Unix(0, ns)
	}
	return stats
}
