package timeline

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// Layout is the canonical local wall-clock format of an instant.
	Layout = "2006-01-02T15:04:05.000"

	Day = 24 * time.Hour
)

// accepted by ParseInstant, in order, after Layout
var altLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Naive re-expresses the wall clock of `t` in time.UTC, dropping its zone & monotonic reading.
// Every instant handled by this package is naive: no zone conversion ever happens.
func Naive(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func AddMinutes(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Minute) }
func AddHours(t time.Time, n int) time.Time   { return t.Add(time.Duration(n) * time.Hour) }

// AddDays adds n×24h. Instants are naive so there is no DST to account for.
func AddDays(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * Day) }

func IsEffectivelyMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay is 23:59 of t's day: windows have minute resolution.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(Day - time.Minute)
}

// NormalizeDueDate treats a due date at midnight of day D as the close of day D-1.
func NormalizeDueDate(due time.Time) time.Time {
	if due.IsZero() || !IsEffectivelyMidnight(due) {
		return due
	}
	return EndOfDay(due.Add(-time.Second))
}

// DaysBetween is the fractional number of days from `from` to `to`.
func DaysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func FormatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return Naive(t).Format(Layout)
}

// ParseInstant parses a local wall-clock string. RFC 3339 input is accepted too; its offset is discarded.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(Layout, s); err == nil {
		return t, nil
	}
	for _, layout := range altLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Naive(t), nil
	}
	return time.Time{}, errors.Errorf("invalid date %q (expected format %s)", s, Layout)
}

// Instant is a naive time.Time (un)marshalled as its canonical local string; the zero value is null.
type Instant struct {
	time.Time
}

func NewInstant(t time.Time) Instant { return Instant{Naive(t)} }

func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(FormatInstant(i.Time))
}

func (i *Instant) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		i.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "decoding date")
	}
	if s == "" {
		i.Time = time.Time{}
		return nil
	}
	t, err := ParseInstant(s)
	if err != nil {
		return err
	}
	i.Time = t
	return nil
}

// UnmarshalParam lets echo bind query parameters into an Instant.
func (i *Instant) UnmarshalParam(param string) error {
	if param == "" {
		i.Time = time.Time{}
		return nil
	}
	t, err := ParseInstant(param)
	if err != nil {
		return err
	}
	i.Time = t
	return nil
}

func (i Instant) String() string { return FormatInstant(i.Time) }
