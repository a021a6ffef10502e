package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
)

// MaxFrameLen is the longest line accepted from the sensor link.
const MaxFrameLen = 4096

// ErrFrameTooLong is returned once for a line longer than MaxFrameLen. The
// line is discarded and reading resumes after its terminator.
var ErrFrameTooLong = errors.New("frame too long")

// LineReader splits a byte stream into newline-terminated frames.
//
// Reads that return 0 bytes and no error (a serial read timeout) are retried,
// and ctx is checked between reads, so a stalled link never blocks shutdown
// for longer than one read timeout.
type LineReader struct {
	r          io.Reader
	buf        []byte
	pending    []byte
	discarding bool
	eof        bool
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, buf: make([]byte, 256)}
}

// ReadLine returns the next frame without its "\n" or "\r\n" terminator.
// Invalid UTF-8 is replaced with U+FFFD. At end of stream a final
// unterminated frame is returned before io.EOF.
func (lr *LineReader) ReadLine(ctx context.Context) (string, error) {
	for {
		if i := bytes.IndexByte(lr.pending, '\n'); i >= 0 {
			raw := lr.pending[:i]
			lr.pending = lr.pending[i+1:]
			if lr.discarding {
				lr.discarding = false
				return "", ErrFrameTooLong
			}
			return decode(raw), nil
		}

		if len(lr.pending) > MaxFrameLen {
			lr.pending = lr.pending[:0]
			lr.discarding = true
		}

		if lr.eof {
			if len(lr.pending) == 0 && !lr.discarding {
				return "", io.EOF
			}
			raw, discarding := lr.pending, lr.discarding
			lr.pending, lr.discarding = nil, false
			if discarding {
				return "", ErrFrameTooLong
			}
			return decode(raw), nil
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := lr.r.Read(lr.buf)
		if n > 0 {
			lr.pending = append(lr.pending, lr.buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				lr.eof = true
				continue
			}
			return "", err
		}
	}
}

func decode(raw []byte) string {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	return strings.ToValidUTF8(string(raw), "�")
}
