package protocol

import "errors"

// Error kinds shared by the server, the client and the codec. Callers wrap
// them with context and match with errors.Is.
var (
	// ErrConnectFailure means the client could not reach the server.
	ErrConnectFailure = errors.New("connect failed")

	// ErrConnectionLost means the peer closed the socket or delivered fewer
	// bytes than the header promised.
	ErrConnectionLost = errors.New("connection lost")

	// ErrDecode means a payload was framed correctly but is not a valid image.
	ErrDecode = errors.New("frame decode failed")

	// ErrCaptureFailure means the camera stopped producing frames.
	ErrCaptureFailure = errors.New("frame capture failed")

	// ErrFrameTooLarge means a payload does not fit the length field (or the
	// reader's configured limit).
	ErrFrameTooLarge = errors.New("frame too large")
)
