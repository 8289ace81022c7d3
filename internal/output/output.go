// Package output publishes a version on the channels later pipeline steps
// read: stdout, the step output file ($GITHUB_OUTPUT) and an optional payload
// file that becomes the version artifact.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rescale/commit-semver/internal/config"
)

// Step output keys.
const (
	KeyVersion = "version"
	KeySHA     = "sha"
)

// Writer publishes results. Empty paths disable their channel.
type Writer struct {
	Stdout       io.Writer
	GitHubOutput string
	PayloadFile  string
}

// New creates a Writer for cfg printing to stdout.
func New(stdout io.Writer, cfg config.OutputConfig) *Writer {
	return &Writer{
		Stdout:       stdout,
		GitHubOutput: cfg.GitHubOutput,
		PayloadFile:  cfg.PayloadFile,
	}
}

// Publish writes version (and sha, when known) to every configured channel.
// stdout receives the bare version on a line of its own.
func (w *Writer) Publish(version, sha string) error {
	if strings.ContainsAny(version, "\r\n") || strings.ContainsAny(sha, "\r\n") {
		return fmt.Errorf("refusing to publish multi-line value %q", version)
	}

	if w.Stdout != nil {
		if _, err := fmt.Fprintln(w.Stdout, version); err != nil {
			return fmt.Errorf("failed to write version: %w", err)
		}
	}

	if w.GitHubOutput != "" {
		pairs := [][2]string{{KeyVersion, version}}
		if sha != "" {
			pairs = append(pairs, [2]string{KeySHA, sha})
		}
		if err := AppendStepOutputs(w.GitHubOutput, pairs...); err != nil {
			return err
		}
	}

	if w.PayloadFile != "" {
		if err := WritePayload(w.PayloadFile, version); err != nil {
			return err
		}
	}
	return nil
}

// AppendStepOutputs appends key=value lines to the step output file at path,
// creating it if needed.
func AppendStepOutputs(path string, pairs ...[2]string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open step output file %s: %w", path, err)
	}

	var b strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&b, "%s=%s\n", p[0], p[1])
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write step output file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close step output file %s: %w", path, err)
	}
	return nil
}

// WritePayload writes the version artifact payload: the version and a
// newline, nothing else. Parent directories are created.
func WritePayload(path, version string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(version+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write version payload %s: %w", path, err)
	}
	return nil
}
