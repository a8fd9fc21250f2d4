// Package prompt assembles the bilingual prompts sent to the
// generation model. The system instructions pin the response language
// and forbid answers from outside the provided context.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"sahayak/internal/domain"
)

//go:embed templates/*.txt
var templateFS embed.FS

const systemPromptHindi = `आप एक सहायक AI असिस्टेंट हैं। आपको हमेशा हिंदी में जवाब देना है।
यदि context दिया गया है तो उसके आधार पर जवाब दें। अगर आपको context में जवाब नहीं मिलता तो कहें कि "मुझे इस बारे में जानकारी नहीं है।"
स्पष्ट, संक्षिप्त और सही हिंदी में उत्तर दें।`

const systemPromptEnglish = `You are a helpful AI assistant. Always respond in English only.
If context is provided, base your answer on that context. If you don't know the answer from the context, say "I don't have information about this."
Provide clear, concise answers in proper English.`

// Builder renders the user prompt from embedded templates, one per
// response language.
type Builder struct {
	hindi   *template.Template
	english *template.Template
}

type promptData struct {
	Question string
	Sections []section
}

type section struct {
	Source   string
	Sequence int
	Text     string
}

func NewBuilder() (*Builder, error) {
	hindi, err := parseTemplate("templates/answer_hi.txt")
	if err != nil {
		return nil, err
	}
	english, err := parseTemplate("templates/answer_en.txt")
	if err != nil {
		return nil, err
	}
	return &Builder{hindi: hindi, english: english}, nil
}

func parseTemplate(name string) (*template.Template, error) {
	content, err := templateFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatSections": func(sections []section) string {
			var sb strings.Builder
			for i, s := range sections {
				if i > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(fmt.Sprintf("[स्रोत/source: %s#%d]\n", s.Source, s.Sequence))
				sb.WriteString(s.Text)
			}
			return sb.String()
		},
	}
}

// Build returns the system and user prompts for answering question
// from the retrieved chunks. lang is the detected query language; the
// prompts follow its response language, so mixed input gets the Hindi
// pair.
func (b *Builder) Build(lang domain.Language, question string, chunks []domain.ScoredChunk) (string, string, error) {
	data := promptData{
		Question: question,
		Sections: make([]section, 0, len(chunks)),
	}
	for _, sc := range chunks {
		data.Sections = append(data.Sections, section{
			Source:   sc.SourceFilename,
			Sequence: sc.Chunk.SequenceIndex,
			Text:     sc.Chunk.Text,
		})
	}

	systemPrompt := systemPromptHindi
	tmpl := b.hindi
	if lang.ResponseLanguage() == domain.LangEnglish {
		systemPrompt = systemPromptEnglish
		tmpl = b.english
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return systemPrompt, strings.TrimRight(buf.String(), "\n"), nil
}
