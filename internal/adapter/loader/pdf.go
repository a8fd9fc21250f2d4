package loader

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"sahayak/internal/domain"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
// It ships in poppler-utils (apt) or poppler (brew).
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH, install poppler-utils")

// PDFLoader extracts text from PDF files with pdftotext.
type PDFLoader struct {
	runner CommandRunner
}

func NewPDFLoader() *PDFLoader {
	return &PDFLoader{runner: ExecRunner{}}
}

// NewPDFLoaderWithRunner injects a custom runner, used by tests.
func NewPDFLoaderWithRunner(runner CommandRunner) *PDFLoader {
	return &PDFLoader{runner: runner}
}

// CheckPDFTool reports whether pdftotext is available.
func CheckPDFTool() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

func (l *PDFLoader) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (l *PDFLoader) Load(ctx context.Context, path string) (domain.Document, error) {
	out, err := l.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return domain.Document{}, fmt.Errorf("pdftotext failed for %s: %w", path, err)
	}

	text := string(out)
	name := filepath.Base(path)
	return domain.Document{
		ID:             DocumentID(name, text),
		SourceFilename: name,
		RawText:        text,
	}, nil
}
