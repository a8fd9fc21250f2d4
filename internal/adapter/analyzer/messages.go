package analyzer

import "sahayak/internal/domain"

// Messages holds the user-facing strings for one response language.
// Surfaces (CLI, chat, HTTP) pick the set matching the query's
// resolved response language so degraded paths stay bilingual.
type Messages struct {
	NoDocuments string
	NoAnswer    string
	Unavailable string
	Thinking    string
	Sources     string
	Language    string
}

var hindiMessages = Messages{
	NoDocuments: "कृपया पहले दस्तावेज़ अपलोड करके प्रोसेस करें!",
	NoAnswer:    "मुझे इस बारे में जानकारी नहीं है।",
	Unavailable: "API त्रुटि: सेवा अस्थायी रूप से अनुपलब्ध है। कृपया थोड़ी देर बाद फिर से प्रयास करें।",
	Thinking:    "सोच रहा हूँ...",
	Sources:     "स्रोत",
	Language:    "भाषा",
}

var englishMessages = Messages{
	NoDocuments: "Please upload and process documents first!",
	NoAnswer:    "I don't have information about this.",
	Unavailable: "API error: the service is temporarily unavailable. Please try again later.",
	Thinking:    "Thinking...",
	Sources:     "Sources",
	Language:    "Language",
}

// MessagesFor returns the message set for a detected language,
// resolving mixed to Hindi.
func MessagesFor(lang domain.Language) Messages {
	if lang.ResponseLanguage() == domain.LangEnglish {
		return englishMessages
	}
	return hindiMessages
}
