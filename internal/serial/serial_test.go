package serial

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedReader returns one chunk per Read call. An empty chunk simulates a
// read timeout (0, nil).
type scriptedReader struct {
	chunks []string
	err    error
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	return copy(p, c), nil
}

func readAll(t *testing.T, lr *LineReader) ([]string, []error) {
	t.Helper()
	var lines []string
	var errs []error
	for i := 0; i < 100; i++ {
		line, err := lr.ReadLine(context.Background())
		if errors.Is(err, io.EOF) {
			return lines, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lines = append(lines, line)
	}
	t.Fatal("reader did not reach EOF")
	return nil, nil
}

func TestLineReader_SplitsFrames(t *testing.T) {
	lr := NewLineReader(&scriptedReader{chunks: []string{
		"Raw: 1 | Volt", "", "age: 0.50 V\r\nRaw: 2 | Voltage: 0.6",
		"", "", "1 V\n\nlast",
	}})

	lines, errs := readAll(t, lr)
	if len(errs) != 0 {
		t.Fatalf("errors = %v", errs)
	}
	want := []string{"Raw: 1 | Voltage: 0.50 V", "Raw: 2 | Voltage: 0.61 V", "", "last"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
}

func TestLineReader_ReplacesInvalidUTF8(t *testing.T) {
	lr := NewLineReader(&scriptedReader{chunks: []string{"Raw: \xff1 | Voltage: 0.5 V\n"}})
	line, err := lr.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("ReadLine() error = %v", err)
	}
	if line != "Raw: �1 | Voltage: 0.5 V" {
		t.Fatalf("line = %q", line)
	}
}

func TestLineReader_DiscardsOverlongFrame(t *testing.T) {
	long := strings.Repeat("x", MaxFrameLen+100)
	var chunks []string
	for i := 0; i < len(long); i += 200 {
		end := min(i+200, len(long))
		chunks = append(chunks, long[i:end])
	}
	chunks = append(chunks, "\nRaw: 1 | Voltage: 0.4 V\n")

	lines, errs := readAll(t, NewLineReader(&scriptedReader{chunks: chunks}))
	if len(errs) != 1 || !errors.Is(errs[0], ErrFrameTooLong) {
		t.Fatalf("errors = %v, want one ErrFrameTooLong", errs)
	}
	if len(lines) != 1 || lines[0] != "Raw: 1 | Voltage: 0.4 V" {
		t.Fatalf("lines = %q, want the frame after the long one", lines)
	}
}

type stallReader struct{}

func (stallReader) Read([]byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}

func TestLineReader_StallHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewLineReader(stallReader{}).ReadLine(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReadLine() error = %v, want deadline exceeded", err)
	}
}

func TestLineReader_PropagatesReadError(t *testing.T) {
	boom := errors.New("device unplugged")
	_, err := NewLineReader(&scriptedReader{err: boom}).ReadLine(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("ReadLine() error = %v, want %v", err, boom)
	}
}

type fakePort struct {
	*scriptedReader
	mu     sync.Mutex
	closed bool
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSource_ReopensAfterFailure(t *testing.T) {
	first := &fakePort{scriptedReader: &scriptedReader{
		chunks: []string{"Raw: 1 | Voltage: 0.5 V\n"},
		err:    errors.New("input/output error"),
	}}
	second := &fakePort{scriptedReader: &scriptedReader{
		chunks: []string{"Raw: 2 | Voltage: 0.7 V\n"},
	}}

	opens := 0
	open := func(Config) (io.ReadCloser, error) {
		opens++
		switch opens {
		case 1:
			return first, nil
		case 2:
			return nil, errors.New("no such device")
		default:
			return second, nil
		}
	}

	src := NewSource(Config{Port: "/dev/fake", MinBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}, open, discardLogger(), nil)
	ctx := context.Background()
	if err := src.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	line, err := src.ReadLine(ctx)
	if err != nil || line != "Raw: 1 | Voltage: 0.5 V" {
		t.Fatalf("first ReadLine() = %q, %v", line, err)
	}
	line, err = src.ReadLine(ctx)
	if err != nil || line != "Raw: 2 | Voltage: 0.7 V" {
		t.Fatalf("second ReadLine() = %q, %v", line, err)
	}
	if opens != 3 {
		t.Fatalf("opens = %d, want 3", opens)
	}
	if !first.closed {
		t.Fatalf("failed port was not closed")
	}
	if err := src.Close(); err != nil || !second.closed {
		t.Fatalf("Close() = %v, closed = %v", err, second.closed)
	}
}

func TestSource_OpenFailureIsReturned(t *testing.T) {
	open := func(Config) (io.ReadCloser, error) { return nil, errors.New("permission denied") }
	src := NewSource(Config{Port: "/dev/ttyACM0"}, open, discardLogger(), nil)
	if err := src.Open(context.Background()); err == nil {
		t.Fatalf("Open() error = nil, want non-nil")
	}
}

func TestSource_ReopenHonoursCancel(t *testing.T) {
	open := func(Config) (io.ReadCloser, error) { return nil, errors.New("gone") }
	src := NewSource(Config{Port: "/dev/fake", MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}, open, discardLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.ReadLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReadLine() error = %v, want deadline exceeded", err)
	}
}

func TestSource_Settle(t *testing.T) {
	port := &fakePort{scriptedReader: &scriptedReader{}}
	src := NewSource(Config{Port: "/dev/fake", Settle: 15 * time.Millisecond}, func(Config) (io.ReadCloser, error) { return port, nil }, discardLogger(), nil)

	start := time.Now()
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("Open() returned after %v, want >= settle", elapsed)
	}
}
