package correction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Context tunes the correction prompt for one run. All fields are optional.
type Context struct {
	SpeakerName  string `json:"speaker_name"`
	Topic        string `json:"topic"`
	Keywords     string `json:"keywords"`
	ExtraContext string `json:"extra_context"`

	RemoveFillers   bool `json:"remove_fillers"`
	FixStutters     bool `json:"fix_stutters"`
	FilterProfanity bool `json:"filter_profanity"`

	// ReferenceContent is pre-fetched text the model should mine for
	// vocabulary and proper nouns. ReferenceURL is informational only.
	ReferenceURL     string `json:"reference_url"`
	ReferenceContent string `json:"reference_content"`
}

// TruncateReference caps the reference content at limit characters so a
// large source document cannot blow up the prompt.
func (c Context) TruncateReference(limit int) Context {
	if limit <= 0 || len(c.ReferenceContent) <= limit {
		return c
	}
	c.ReferenceContent = c.ReferenceContent[:limit]
	return c
}

func systemPrompt(c Context) string {
	var b strings.Builder
	b.WriteString("You are an expert professional subtitle editor and proofreader.\n")
	b.WriteString("Your task is to correct typos, misheard words, and proper noun errors in the provided subtitle lines.\n\n")

	b.WriteString("CONTEXT INFORMATION:\n")
	fmt.Fprintf(&b, "- Speaker: %s\n", orDefault(c.SpeakerName, "Unknown"))
	fmt.Fprintf(&b, "- Topic: %s\n", orDefault(c.Topic, "General Interview"))
	fmt.Fprintf(&b, "- Key Terms/Glossary (Pay close attention to these): %s\n", orDefault(c.Keywords, "None"))
	fmt.Fprintf(&b, "- Additional Background: %s\n", orDefault(c.ExtraContext, "None"))
	if ref := strings.TrimSpace(c.ReferenceContent); ref != "" {
		fmt.Fprintf(&b, "\nREFERENCE MATERIAL FROM URL (%s):\n\"\"\"\n%s\n\"\"\"\n", orDefault(c.ReferenceURL, "provided"), ref)
		b.WriteString("(Use the vocabulary, names, and context from the text above to correct specific terms in the subtitles.)\n")
	}

	b.WriteString("\nINSTRUCTIONS:\n")
	b.WriteString("1. Analyze the input lines based on the context above.\n")
	b.WriteString("2. Fix homophone errors and proper nouns.\n")
	b.WriteString("3. Improve punctuation and fix sentence fragmentation for better readability.\n")
	if c.RemoveFillers {
		b.WriteString("   - REMOVE filler words and hesitation markers (e.g., \"um\", \"ah\", \"er\", \"hmm\").\n")
	}
	if c.FixStutters {
		b.WriteString("   - FIX stuttering and unnecessary repetitions (e.g., \"I... I went\" -> \"I went\").\n")
	}
	if c.FilterProfanity {
		b.WriteString("   - FILTER or remove profanity/swear words.\n")
	}
	b.WriteString("4. Maintain the original tone and casual speech patterns unless they conflict with the cleaning instructions above.\n")
	b.WriteString("5. Do NOT merge lines. Do NOT split lines. The output array length MUST match the input array length exactly. If a line becomes empty after cleaning, return an empty string.\n")
	b.WriteString("6. Return ONLY a JSON object of the form {\"lines\": [\"...\"]} containing the corrected text for each line, in order.\n")
	return b.String()
}

func userPrompt(lines []string) string {
	encoded, err := json.Marshal(lines)
	if err != nil {
		// []string cannot fail to marshal; keep the request usable anyway.
		encoded = []byte("[]")
	}
	return "INPUT SUBTITLES:\n" + string(encoded)
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
