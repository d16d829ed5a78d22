// Package exiftool drives the exiftool command-line program for tag writing
// and GPS track geotagging.
package exiftool

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// Tool is a resolved exiftool binary
type Tool struct {
	logger zerolog.Logger
	path   string
}

// New resolves the exiftool binary. An empty bin means "exiftool" on PATH.
func New(logger zerolog.Logger, bin string) (*Tool, error) {
	if bin == "" {
		bin = "exiftool"
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("exiftool not found: %w", err)
	}

	return &Tool{
		logger: logger.With().Str("component", "exiftool").Logger(),
		path:   path,
	}, nil
}

// Path returns the resolved binary path
func (t *Tool) Path() string {
	return t.path
}
