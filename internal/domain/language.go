package domain

// Language is the script classification of a query: hindi when the
// Devanagari ratio clears the configured threshold, english when no
// Devanagari is present, mixed in between.
type Language string

const (
	LangHindi   Language = "hindi"
	LangEnglish Language = "english"
	LangMixed   Language = "mixed"
)

// ResponseLanguage resolves the language answers are rendered in.
// Mixed queries resolve to Hindi: any Devanagari in the question means
// the user reads Hindi, and replies stay monolingual.
func (l Language) ResponseLanguage() Language {
	if l == LangEnglish {
		return LangEnglish
	}
	return LangHindi
}

func (l Language) String() string {
	return string(l)
}
