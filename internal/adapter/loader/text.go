package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"sahayak/internal/domain"
)

// TextLoader reads UTF-8 plain text files.
type TextLoader struct{}

func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".txt")
}

func (l *TextLoader) Load(ctx context.Context, path string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return domain.Document{}, fmt.Errorf("%s is not valid UTF-8", path)
	}

	text := string(data)
	name := filepath.Base(path)
	return domain.Document{
		ID:             DocumentID(name, text),
		SourceFilename: name,
		RawText:        text,
	}, nil
}
