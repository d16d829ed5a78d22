// Package frames runs the per-frame extraction loop: decode, resize,
// encode, write and tag every planned frame of a video.
package frames

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/keagan/geoframes/internal/timestamp"
	"github.com/keagan/geoframes/pkg/util"
)

// Source decodes the frame shown at a source time
type Source interface {
	Frame(ctx context.Context, at time.Duration) (image.Image, error)
}

// TagWriter writes metadata tags into an image file in place
type TagWriter interface {
	WriteTags(ctx context.Context, path string, tags map[string]string) error
}

// ImageWriter persists an image as a JPEG file
type ImageWriter interface {
	WriteJPEG(path string, img image.Image) error
}

// Planned is one frame ready for processing
type Planned struct {
	Index         int
	SourceSeconds float64
	Stamp         timestamp.Stamp
}

// Seek returns the decode position, rounded to the millisecond
func (p Planned) Seek() time.Duration {
	return util.SecondsToDuration(p.SourceSeconds)
}

// Metadata holds the static tags written to every frame
type Metadata struct {
	Author   string
	Make     string
	Model    string
	Software string
	// Zone is the recording timezone offset, "±HH:MM"
	Zone string
}

// Tags returns the full tag set for a frame captured at stamp
func (m Metadata) Tags(stamp timestamp.Stamp) map[string]string {
	tags := map[string]string{
		"DateTimeOriginal":   stamp.DateTime,
		"SubSecTimeOriginal": stamp.SubSec(),
		"SubSecTime":         stamp.SubSec(),
	}
	if m.Zone != "" {
		tags["OffsetTimeOriginal"] = m.Zone
	}
	if m.Make != "" {
		tags["Make"] = m.Make
	}
	if m.Model != "" {
		tags["Model"] = m.Model
	}
	if m.Author != "" {
		tags["Artist"] = m.Author
		tags["Copyright"] = fmt.Sprintf("%s, %d", m.Author, stamp.Time.Year())
	}
	if m.Software != "" {
		tags["Software"] = m.Software
	}
	return tags
}

// FileName returns the output file name of a frame
func FileName(base string, index int) string {
	return fmt.Sprintf("%s_f%05d.jpg", base, index)
}

// GlobPattern matches every frame file of a run
func GlobPattern(dir, base string) string {
	return filepath.Join(dir, base+"_f*.jpg")
}

// BaseName derives the frame file prefix from a video path: the file name
// up to its first dot.
func BaseName(videoPath string) string {
	name := filepath.Base(videoPath)
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}
