// Package llm provides internal representations of the generative-text API
// requests and streamed responses exchanged with the upstream model service.
package llm

// ErrorResponse represents an error body returned by the generative-text API.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the payload of an ErrorResponse.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"` // e.g. "RESOURCE_EXHAUSTED", "INVALID_ARGUMENT"
}
