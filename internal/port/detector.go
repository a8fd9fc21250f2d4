package port

import "sahayak/internal/domain"

type LanguageDetector interface {
	Detect(text string) domain.Language
}
