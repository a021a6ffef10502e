package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

// ErrUnavailable wraps every failure to reach or query a reading store.
var ErrUnavailable = errors.New("reading store unavailable")

// Appender stores one reading. Stored readings are never modified.
type Appender interface {
	Append(ctx context.Context, r types.Reading) error
}

// Lister returns stored readings observed at or after since, in no particular
// order. A zero since means no lower bound.
type Lister interface {
	ListRecent(ctx context.Context, since time.Time) ([]types.Record, error)
}

// Unavailable wraps err with ErrUnavailable and the failing operation.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// TimeLayout is the fixed-width UTC layout used for stored timestamps. It sorts
// lexicographically in time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
