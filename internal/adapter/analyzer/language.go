// Package analyzer classifies query text by script composition. Hindi
// is detected from the share of Devanagari characters among alphabetic
// characters; whitespace, punctuation and digits are ignored.
package analyzer

import (
	"fmt"
	"unicode"

	"sahayak/internal/domain"
)

// Devanagari Unicode block.
const (
	devanagariLo = 'ऀ'
	devanagariHi = 'ॿ'
)

// Detector classifies text as hindi, english or mixed. The threshold
// is injected so boundary values are directly testable.
type Detector struct {
	hindiThreshold float64
}

func NewDetector(hindiThreshold float64) (*Detector, error) {
	if hindiThreshold < 0 || hindiThreshold > 1 {
		return nil, fmt.Errorf("%w: hindi threshold must be in [0, 1], got %v", domain.ErrInvalidConfiguration, hindiThreshold)
	}
	return &Detector{hindiThreshold: hindiThreshold}, nil
}

// Detect computes the ratio of Devanagari characters to alphabetic
// characters and classifies: ratio >= threshold is hindi, ratio == 0
// is english, anything in between is mixed. Text with no alphabetic
// characters at all is english.
func (d *Detector) Detect(text string) domain.Language {
	ratio := devanagariRatio(text)
	switch {
	case ratio >= d.hindiThreshold && ratio > 0:
		return domain.LangHindi
	case ratio == 0:
		return domain.LangEnglish
	default:
		return domain.LangMixed
	}
}

// devanagariRatio returns devanagari/alphabetic over the text's runes.
// Vowel signs and viramas are combining marks rather than letters, but
// they still count as Devanagari characters and as alphabetic ones, so
// the ratio stays within [0, 1].
func devanagariRatio(text string) float64 {
	devanagari := 0
	alphabetic := 0
	for _, r := range text {
		inBlock := r >= devanagariLo && r <= devanagariHi
		if inBlock || unicode.IsLetter(r) {
			alphabetic++
		}
		if inBlock {
			devanagari++
		}
	}
	if alphabetic == 0 {
		return 0
	}
	return float64(devanagari) / float64(alphabetic)
}
