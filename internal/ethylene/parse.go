package ethylene

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	rawMarker     = "Raw:"
	voltageMarker = "Voltage:"
	fieldSep      = "|"
)

// FrameKind tells a decoded sample apart from the two ways a line can fail.
type FrameKind int

const (
	// FrameUnrecognized is a line that is not a sensor line (banner text, blank line).
	FrameUnrecognized FrameKind = iota
	// FrameParsed carries a decoded voltage.
	FrameParsed
	// FrameMalformed is a sensor line whose voltage field could not be decoded.
	FrameMalformed
)

func (k FrameKind) String() string {
	switch k {
	case FrameParsed:
		return "parsed"
	case FrameMalformed:
		return "malformed"
	default:
		return "unrecognized"
	}
}

// Frame is the result of parsing one line from the sensor link.
type Frame struct {
	Kind    FrameKind
	Voltage float64
	// Err is set for FrameMalformed and wraps ErrMalformedFrame.
	Err error
}

// ParseLine decodes a line of the form "Raw: 123 | Voltage: 0.60 V".
// It never fails: problems are reported through the returned Frame.
func ParseLine(line string) Frame {
	line = strings.TrimSpace(line)
	if !strings.Contains(line, rawMarker) || !strings.Contains(line, voltageMarker) {
		return Frame{Kind: FrameUnrecognized}
	}
	if !strings.Contains(line, fieldSep) {
		return malformed("no %q delimiter between fields", fieldSep)
	}

	var field string
	for _, part := range strings.Split(line, fieldSep) {
		if strings.Contains(part, voltageMarker) {
			field = part
			break
		}
	}

	_, value, _ := strings.Cut(field, voltageMarker)
	value = strings.TrimSpace(value)
	value = strings.TrimSpace(strings.TrimSuffix(value, "V"))
	if value == "" {
		return malformed("empty voltage field")
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return malformed("voltage %q: %v", value, err)
	}
	return Frame{Kind: FrameParsed, Voltage: v}
}

func malformed(format string, args ...any) Frame {
	return Frame{
		Kind: FrameMalformed,
		Err:  fmt.Errorf("%w: %s", ErrMalformedFrame, fmt.Sprintf(format, args...)),
	}
}
