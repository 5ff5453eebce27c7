package gemini

import "fmt"

// APIError is a non-200 response from the API.
type APIError struct {
	StatusCode int
	Status     string // API status, e.g. "RESOURCE_EXHAUSTED"
	Message    string
}

func (e *APIError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("gemini returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini returned %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// BlockedError reports a prompt or reply stopped by the safety policy.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "gemini blocked the response: " + e.Reason
}
