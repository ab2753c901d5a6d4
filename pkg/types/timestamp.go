package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ticksPerSecond gives timestamps a resolution of 10 microseconds
const ticksPerSecond = 100000

// Timestamp is a store timestamp as written in container databases, e.g.
// "1500000000.00000" or "1500000000.00000_000000000000000a" with an offset.
type Timestamp struct {
	ticks  int64
	offset int64
}

// NewTimestamp truncates t to timestamp resolution.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{ticks: t.UnixNano() / (int64(time.Second) / ticksPerSecond)}
}

// ParseTimestamp parses the internal string form. Empty strings parse as the zero timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}

	var ts Timestamp
	value, offset, hasOffset := strings.Cut(s, "_")
	if hasOffset {
		off, err := strconv.ParseInt(offset, 16, 64)
		if err != nil {
			return Timestamp{}, fmt.Errorf("invalid timestamp offset %q: %w", s, err)
		}
		ts.offset = off
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if f < 0 {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: negative", s)
	}
	ts.ticks = int64(math.Round(f * ticksPerSecond))
	return ts, nil
}

func (t Timestamp) IsZero() bool {
	return t.ticks == 0 && t.offset == 0
}

// After orders by time, then by offset.
func (t Timestamp) After(o Timestamp) bool {
	if t.ticks != o.ticks {
		return t.ticks > o.ticks
	}
	return t.offset > o.offset
}

func (t Timestamp) Time() time.Time {
	sec := t.ticks / ticksPerSecond
	nsec := (t.ticks % ticksPerSecond) * (int64(time.Second) / ticksPerSecond)
	return time.Unix(sec, nsec).UTC()
}

// Normal is the fixed width seconds form without offset.
func (t Timestamp) Normal() string {
	return fmt.Sprintf("%010d.%05d", t.ticks/ticksPerSecond, t.ticks%ticksPerSecond)
}

// Internal is the form stored in databases, including the offset when set.
func (t Timestamp) Internal() string {
	if t.offset == 0 {
		return t.Normal()
	}
	return fmt.Sprintf("%s_%016x", t.Normal(), t.offset)
}

// ISOFormat renders the UTC time with microseconds, e.g. 2017-07-14T02:40:00.000000.
func (t Timestamp) ISOFormat() string {
	return t.Time().Format("2006-01-02T15:04:05.000000")
}

func (t Timestamp) String() string {
	return t.Internal()
}
