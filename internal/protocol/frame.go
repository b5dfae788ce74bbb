// Package protocol implements the CamLink wire format.
//
// A stream is a repeating sequence of
//
//	[4-byte unsigned length, little-endian][length bytes of JPEG data]
//
// with no handshake, heartbeat or checksum. The byte order is fixed to
// little-endian regardless of host architecture.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the size of the length prefix in bytes.
const HeaderSize = 4

// DefaultPort is the conventional server port.
const DefaultPort = 12345

// MaxPayloadSize is the largest payload the length field can describe.
const MaxPayloadSize = math.MaxUint32

// byteOrder is the protocol byte order for the length field.
var byteOrder = binary.LittleEndian

// EncodeHeader returns the length prefix for a payload of n bytes.
func EncodeHeader(n int) ([]byte, error) {
	if n < 0 || uint64(n) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, n, uint64(MaxPayloadSize))
	}
	header := make([]byte, HeaderSize)
	byteOrder.PutUint32(header, uint32(n))
	return header, nil
}

// EncodeFrame returns the length header followed by buf.
func EncodeFrame(buf []byte) ([]byte, error) {
	header, err := EncodeHeader(len(buf))
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+len(buf))
	copy(out, header)
	copy(out[HeaderSize:], buf)
	return out, nil
}

// DecodeHeader parses a length prefix. Any 4 bytes are a valid header.
func DecodeHeader(b []byte) (uint32, error) {
	if len(b) != HeaderSize {
		return 0, fmt.Errorf("header must be %d bytes, got %d", HeaderSize, len(b))
	}
	return byteOrder.Uint32(b), nil
}

// WriteFrame writes header and payload to w in a single write, so exactly
// 4+len(payload) bytes go out in order.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}

	n, err := w.Write(frame)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("write frame: %w", io.ErrShortWrite)
	}
	return nil
}

// ReadHeader blocks until all four header bytes have arrived, however the
// socket chunks them.
func ReadHeader(r io.Reader) (uint32, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, readErr("read header", err)
	}
	return byteOrder.Uint32(header[:]), nil
}

// preallocLimit is the largest payload buffer allocated before its bytes
// arrive. Longer payloads grow with the data, so a corrupt header cannot
// reserve gigabytes up front.
const preallocLimit = 1 << 20

// ReadPayload accumulates exactly n bytes from r.
func ReadPayload(r io.Reader, n uint32) ([]byte, error) {
	if n <= preallocLimit {
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, readErr("read payload", err)
		}
		return payload, nil
	}

	var buf bytes.Buffer
	buf.Grow(preallocLimit)
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, readErr("read payload", err)
	}
	return buf.Bytes(), nil
}

// Reader reads length-prefixed frames from a stream.
type Reader struct {
	r       io.Reader
	maxSize uint32
}

// NewReader returns a Reader over r. A maxSize of zero accepts any length the
// header can express.
func NewReader(r io.Reader, maxSize uint32) *Reader {
	return &Reader{r: r, maxSize: maxSize}
}

// ReadFrame reads one header and its payload.
func (fr *Reader) ReadFrame() ([]byte, error) {
	length, err := ReadHeader(fr.r)
	if err != nil {
		return nil, err
	}
	if fr.maxSize > 0 && length > fr.maxSize {
		return nil, fmt.Errorf("%w: header announces %d bytes, limit is %d", ErrFrameTooLarge, length, fr.maxSize)
	}
	return ReadPayload(fr.r, length)
}

// readErr maps a closed or truncated stream to ErrConnectionLost.
func readErr(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", op, ErrConnectionLost)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrConnectionLost, err)
}
