package exiftool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	readyMarker = "{ready}"
	doneMarker  = "{done}"
)

// ErrSessionClosed is returned by a session that was closed or whose process exited
var ErrSessionClosed = errors.New("exiftool session closed")

// Session is a long-lived "exiftool -stay_open" process that writes tags
// to one file per request. It is safe for concurrent use; requests are
// serialised.
type Session struct {
	tool *Tool

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	stderr chan string
	closed bool
}

// OpenSession starts the exiftool process. The process lives until Close,
// or until ctx is canceled.
func (t *Tool) OpenSession(ctx context.Context) (*Session, error) {
	cmd := exec.CommandContext(ctx, t.path, "-stay_open", "True", "-@", "-")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start exiftool: %w", err)
	}

	s := &Session{
		tool:   t,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewScanner(stdout),
		stderr: make(chan string, 64),
	}

	go func() {
		defer close(s.stderr)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.stderr <- scanner.Text()
		}
	}()

	t.logger.Debug().Int("pid", cmd.Process.Pid).Msg("exiftool session started")
	return s, nil
}

// WriteTags writes tags into the file at path, replacing it in place
func (s *Session) WriteTags(ctx context.Context, path string, tags map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	args := tagArgs(path, tags)
	args = append(args, "-echo4", doneMarker, "-execute")

	if _, err := io.WriteString(s.stdin, strings.Join(args, "\n")+"\n"); err != nil {
		s.closed = true
		return fmt.Errorf("send exiftool request: %w", err)
	}

	var out []string
	ready := false
	for s.stdout.Scan() {
		line := strings.TrimSpace(s.stdout.Text())
		if line == readyMarker {
			ready = true
			break
		}
		out = append(out, line)
	}

	var errs []string
	done := false
	for line := range s.stderr {
		if strings.TrimSpace(line) == doneMarker {
			done = true
			break
		}
		s.tool.logger.Debug().Str("exiftool", line).Str("path", path).Msg("exiftool stderr")
		if strings.HasPrefix(line, "Error") {
			errs = append(errs, line)
		}
	}

	if !ready || !done {
		s.closed = true
		return fmt.Errorf("tag %s: %w", path, ErrSessionClosed)
	}
	if len(errs) > 0 {
		return fmt.Errorf("tag %s: %s", path, strings.Join(errs, "; "))
	}
	if updatedCount(out) < 1 {
		return fmt.Errorf("tag %s: file not updated: %s", path, strings.Join(out, "; "))
	}
	return nil
}

// Close ends the exiftool process
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed && s.cmd.ProcessState != nil {
		return nil
	}
	s.closed = true

	_, _ = io.WriteString(s.stdin, "-stay_open\nFalse\n")
	_ = s.stdin.Close()

	for range s.stderr {
	}

	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("exiftool session exit: %w", err)
	}
	return nil
}

// tagArgs renders one request in exiftool argument-file syntax, tags in name order
func tagArgs(path string, tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	args := []string{"-overwrite_original", "-P"}
	for _, name := range names {
		args = append(args, fmt.Sprintf("-%s=%s", name, sanitize(tags[name])))
	}
	return append(args, path)
}

// sanitize keeps values on a single argument line
func sanitize(v string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(v)), " ")
}

// updatedCount reads "N image files updated" from exiftool's summary
func updatedCount(lines []string) int {
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 4 && fields[1] == "image" && fields[2] == "files" && fields[3] == "updated" {
			n, err := strconv.Atoi(fields[0])
			if err == nil {
				return n
			}
		}
	}
	return 0
}
