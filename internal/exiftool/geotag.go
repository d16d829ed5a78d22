package exiftool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GeotimeSource is the tag exiftool matches against track point times
const GeotimeSource = "SubSecDateTimeOriginal"

var (
	// ErrNoImages is returned when the geotag pattern matches nothing
	ErrNoImages = errors.New("no images match pattern")
	// ErrGeotagFailed wraps a non-zero exiftool exit
	ErrGeotagFailed = errors.New("geotagging failed")
)

// GeotagResult describes one geotagging invocation
type GeotagResult struct {
	Pattern  string
	Files    int
	ExitCode int
	Output   string
}

// Geotag interpolates positions from track into every image matching
// pattern, using each image's sub-second original timestamp. It runs
// exiftool exactly once; matched files are handed over in an argument file.
func (t *Tool) Geotag(ctx context.Context, track, pattern string) (GeotagResult, error) {
	result := GeotagResult{Pattern: pattern, ExitCode: -1}

	files, err := filepath.Glob(pattern)
	if err != nil {
		return result, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	result.Files = len(files)
	if len(files) == 0 {
		return result, fmt.Errorf("%w: %s", ErrNoImages, pattern)
	}

	argfile, err := writeArgfile(geotagArgs(track, files))
	if err != nil {
		return result, err
	}
	defer os.Remove(argfile)

	t.logger.Info().
		Str("track", track).
		Str("pattern", pattern).
		Int("files", len(files)).
		Msg("geotagging images")

	cmd := exec.CommandContext(ctx, t.path, "-@", argfile)
	output, err := cmd.CombinedOutput()
	result.Output = strings.TrimSpace(string(output))

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("%w: exit status %d: %s", ErrGeotagFailed, result.ExitCode, lastLines(result.Output, 3))
		}
		return result, fmt.Errorf("run exiftool: %w", err)
	}

	result.ExitCode = 0
	t.logger.Info().Str("summary", lastLines(result.Output, 2)).Msg("geotagging complete")
	return result, nil
}

func geotagArgs(track string, files []string) []string {
	args := []string{
		"-P",
		"-geotag", track,
		"-geotime<" + GeotimeSource,
		"-overwrite_original",
	}
	return append(args, files...)
}

func writeArgfile(args []string) (string, error) {
	f, err := os.CreateTemp("", "geoframes-geotag-*.args")
	if err != nil {
		return "", fmt.Errorf("create argument file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(args, "\n") + "\n"); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write argument file: %w", err)
	}
	return f.Name(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "; ")
}
