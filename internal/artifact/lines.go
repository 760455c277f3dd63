// Package artifact implements the durable stage output files: append-only
// line files and CSV files with per-record flush and sync, plus the readers
// used for stage handoff.
package artifact

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LineFile appends one value per line to a file. Appends are flushed and
// synced before returning so a record either survives a crash or was never
// reported as committed.
type LineFile struct {
	file *os.File
}

// OpenLines opens (or creates) a line artifact for appending.
func OpenLines(path string) (*LineFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open line artifact %s: %w", path, err)
	}
	return &LineFile{file: f}, nil
}

// Append writes each value on its own line and syncs the file.
func (l *LineFile) Append(values []string) error {
	if len(values) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(v)
		sb.WriteByte('\n')
	}
	if _, err := l.file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("append to %s: %w", l.file.Name(), err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", l.file.Name(), err)
	}
	return nil
}

// Close closes the underlying file.
func (l *LineFile) Close() error {
	return l.file.Close()
}

// ReadLines loads a line artifact, trimming whitespace and dropping blanks.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}
