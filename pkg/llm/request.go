package llm

import "strings"

// GenerateRequest represents a streamGenerateContent request body.
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`                 // Prompt contents
	GenerationConfig GenerationConfig `json:"generationConfig"`         // Sampling and length parameters
	SafetySettings   []SafetySetting  `json:"safetySettings,omitempty"` // Content-safety policy

	// Model is routed through the URL, never serialized.
	Model string `json:"-"`
}

// Prompt returns the concatenated text of every part of every content.
func (r *GenerateRequest) Prompt() string {
	var b strings.Builder
	for _, c := range r.Contents {
		for _, p := range c.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
