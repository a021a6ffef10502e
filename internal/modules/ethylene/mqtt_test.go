package ethylene

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/mqtt"
	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

type captureSubscriber struct {
	handler mqtt.ReadingHandler
}

func (s *captureSubscriber) SetMessageHandler(h mqtt.ReadingHandler) { s.handler = h }

type sliceAppender struct {
	got []types.Reading
	err error
}

func (a *sliceAppender) Append(_ context.Context, r types.Reading) error {
	if a.err != nil {
		return a.err
	}
	a.got = append(a.got, r)
	return nil
}

func TestRegisterMQTTHandler(t *testing.T) {
	sub := &captureSubscriber{}
	app := &sliceAppender{}
	registerMQTTHandler(sub, app, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if sub.handler == nil {
		t.Fatal("handler not registered")
	}

	r := types.Reading{StationID: "pi-lab-1", Timestamp: time.Now().UTC(), EthylenePpm: 1.2}
	if err := sub.handler(context.Background(), r); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	if len(app.got) != 1 || app.got[0] != r {
		t.Fatalf("stored = %+v", app.got)
	}

	app.err = errors.New("database is locked")
	if err := sub.handler(context.Background(), r); !errors.Is(err, app.err) {
		t.Fatalf("handler() error = %v, want %v", err, app.err)
	}
}
