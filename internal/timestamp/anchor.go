// Package timestamp maps planned frame indices to capture timestamps.
package timestamp

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock offset bounds in seconds
const (
	MinClockOffset = -10.0
	MaxClockOffset = 10.0
)

// StartLayout is the accepted textual form of a recording start instant
const StartLayout = "2006-01-02T15:04:05.000"

var zonePattern = regexp.MustCompile(`^[+-]\d{2}:\d{2}$`)

// Anchor ties frame zero to a wall-clock instant
type Anchor struct {
	// Start is the recording start as shown by the camera clock. Only the
	// wall-clock fields are used; the location is ignored.
	Start time.Time
	// ClockOffset corrects camera clock drift, in seconds
	ClockOffset float64
	// Zone is the recording timezone offset, e.g. "+02:00"
	Zone string
}

// EffectiveStart returns Start shifted by ClockOffset
func (a Anchor) EffectiveStart() time.Time {
	return wallClock(a.Start).Add(seconds(a.ClockOffset))
}

// Validate checks the offset range and zone format
func (a Anchor) Validate() error {
	if a.Start.IsZero() {
		return fmt.Errorf("start datetime is required")
	}
	if a.ClockOffset < MinClockOffset || a.ClockOffset > MaxClockOffset {
		return fmt.Errorf("time offset %.3fs out of range [%.1f, %.1f]",
			a.ClockOffset, MinClockOffset, MaxClockOffset)
	}
	if _, err := ParseZone(a.Zone); err != nil {
		return err
	}
	return nil
}

// ParseStart parses "YYYY-MM-DDTHH:MM:SS[.fff]" as a wall-clock instant
func ParseStart(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start datetime %q: expected %s", s, StartLayout)
}

// ParseZone validates a "±HH:MM" offset and returns it as a duration
func ParseZone(s string) (time.Duration, error) {
	if !zonePattern.MatchString(s) {
		return 0, fmt.Errorf("invalid timezone offset %q: expected ±HH:MM", s)
	}

	hours, _ := strconv.Atoi(s[1:3])
	minutes, _ := strconv.Atoi(s[4:6])
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("invalid timezone offset %q", s)
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if s[0] == '-' {
		d = -d
	}
	return d, nil
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// seconds converts a real-valued second count to a duration rounded to the microsecond
func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1e6)) * time.Microsecond
}
