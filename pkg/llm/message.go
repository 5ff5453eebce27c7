package llm

// Content is a single message in a generation request or response.
type Content struct {
	Role  string `json:"role,omitempty"` // "user", "model"
	Parts []Part `json:"parts"`
}

// Part is one piece of a Content. Only text parts are used.
type Part struct {
	Text string `json:"text"`
}

// UserText wraps text into a single-part user Content.
func UserText(text string) Content {
	return Content{
		Role:  "user",
		Parts: []Part{{Text: text}},
	}
}
