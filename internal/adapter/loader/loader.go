// Package loader turns files into documents. Plain text is read
// directly; PDFs go through the pdftotext tool from poppler.
package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"

	"sahayak/internal/port"
)

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(exitErr.Stderr))
		}
		return nil, err
	}
	return out, nil
}

// DocumentID derives a stable id from the source name and content, so
// reindexing an unchanged file overwrites its previous records.
func DocumentID(sourceFilename, rawText string) string {
	sum := sha256.Sum256([]byte(sourceFilename + "\n" + rawText))
	return hex.EncodeToString(sum[:])[:12]
}

// ForPath returns the first loader that supports path.
func ForPath(loaders []port.Loader, path string) (port.Loader, bool) {
	for _, l := range loaders {
		if l.Supports(path) {
			return l, true
		}
	}
	return nil, false
}
