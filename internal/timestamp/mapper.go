package timestamp

import (
	"fmt"
	"time"
)

// DateTimeLayout is the EXIF DateTimeOriginal format
const DateTimeLayout = "2006:01:02 15:04:05"

// Stamp is a frame timestamp split the way EXIF stores it
type Stamp struct {
	// DateTime is truncated to whole seconds
	DateTime string
	// SubSecMillis is the truncated millisecond part, 0..999
	SubSecMillis int
	// Time is the full instant, wall clock in UTC location
	Time time.Time
}

// SubSec returns the zero-padded millisecond field
func (s Stamp) SubSec() string {
	return fmt.Sprintf("%03d", s.SubSecMillis)
}

// String renders the stamp with its sub-second part
func (s Stamp) String() string {
	return s.DateTime + "." + s.SubSec()
}

// For computes the timestamp of the frame at index. The instant is always
// derived from the anchor, never from a neighbouring frame.
func For(index int, anchor Anchor, frameInterval float64) Stamp {
	instant := anchor.EffectiveStart().Add(seconds(float64(index) * frameInterval))
	return stampOf(instant)
}

func stampOf(t time.Time) Stamp {
	return Stamp{
		DateTime:     t.Format(DateTimeLayout),
		SubSecMillis: t.Nanosecond() / int(time.Millisecond),
		Time:         t,
	}
}

// Mapper binds an anchor to the display interval of a plan
type Mapper struct {
	anchor   Anchor
	interval float64
	start    time.Time
}

// NewMapper creates a mapper advancing frameInterval seconds per index
func NewMapper(anchor Anchor, frameInterval float64) Mapper {
	return Mapper{
		anchor:   anchor,
		interval: frameInterval,
		start:    anchor.EffectiveStart(),
	}
}

// At returns the timestamp for a frame index
func (m Mapper) At(index int) Stamp {
	return stampOf(m.start.Add(seconds(float64(index) * m.interval)))
}

// Anchor returns the bound anchor
func (m Mapper) Anchor() Anchor {
	return m.anchor
}

// Interval returns the display interval in seconds
func (m Mapper) Interval() float64 {
	return m.interval
}
