package ethylene

import "errors"

var (
	// ErrMalformedFrame marks a line that looked like a sensor line but could not be decoded.
	ErrMalformedFrame = errors.New("malformed sensor frame")
	// ErrDisconnected marks a voltage below the disconnection floor.
	ErrDisconnected = errors.New("sensor disconnected")
	// ErrInvalidNumeric marks a NaN or infinite voltage or concentration.
	ErrInvalidNumeric = errors.New("invalid numeric input")
)
