package alert

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/relvacode/iso8601"

	"github.com/AIGROWTHLANE/ethylene-monitor/internal/types"
)

// Snapshot is the current reading of every station found in one store listing.
type Snapshot struct {
	current map[string]types.Reading
	// Skipped counts records excluded because they could not be decoded.
	Skipped int
}

// Aggregate selects each station's current reading: the one with the latest
// timestamp. Equal timestamps go to the higher ingestion sequence, then to the
// record seen last. Undecodable records are counted in Skipped and ignored.
func Aggregate(records []types.Record) Snapshot {
	s := Snapshot{current: make(map[string]types.Reading)}
	for _, rec := range records {
		r, err := decodeRecord(rec)
		if err != nil {
			s.Skipped++
			continue
		}
		cur, ok := s.current[r.StationID]
		if !ok || newer(r, cur) {
			s.current[r.StationID] = r
		}
	}
	return s
}

func newer(r, cur types.Reading) bool {
	if !r.Timestamp.Equal(cur.Timestamp) {
		return r.Timestamp.After(cur.Timestamp)
	}
	return r.Sequence >= cur.Sequence
}

func decodeRecord(rec types.Record) (types.Reading, error) {
	id := strings.TrimSpace(rec.StationID)
	if id == "" {
		return types.Reading{}, fmt.Errorf("missing station id")
	}
	ts, err := iso8601.ParseString(strings.TrimSpace(rec.Timestamp))
	if err != nil {
		return types.Reading{}, fmt.Errorf("timestamp %q: %w", rec.Timestamp, err)
	}
	ppm, err := strconv.ParseFloat(strings.TrimSpace(rec.EthylenePpm), 64)
	if err != nil {
		return types.Reading{}, fmt.Errorf("ethylene_ppm %q: %w", rec.EthylenePpm, err)
	}
	if math.IsNaN(ppm) || math.IsInf(ppm, 0) {
		return types.Reading{}, fmt.Errorf("ethylene_ppm %q is not finite", rec.EthylenePpm)
	}
	return types.Reading{
		StationID:   id,
		Timestamp:   ts.UTC(),
		EthylenePpm: ppm,
		Sequence:    rec.Sequence,
	}, nil
}

// Current returns a station's current reading. ok is false when the station has
// no decodable readings, which is not an error.
func (s Snapshot) Current(stationID string) (r types.Reading, ok bool) {
	r, ok = s.current[stationID]
	return r, ok
}

// Empty reports that no station has any reading.
func (s Snapshot) Empty() bool { return len(s.current) == 0 }

// Stations returns the station ids in the snapshot, sorted.
func (s Snapshot) Stations() []string {
	ids := make([]string, 0, len(s.current))
	for id := range s.current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
