package generator

import (
	"errors"
	"fmt"
)

var (
	// ErrGeneration matches every failure that produced no fragment.
	ErrGeneration = errors.New("generation failed")

	// ErrPartialStream matches failures after at least one fragment was delivered.
	ErrPartialStream = errors.New("stream failed after partial output")

	// ErrStreamClosed is the cause recorded when a caller closes a stream early.
	ErrStreamClosed = errors.New("stream closed before completion")
)

// GenerationError reports that the service produced no usable reply.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGeneration, e.Cause}
}

// PartialStreamError reports a stream that broke after delivering fragments.
// Partial holds the text delivered before the failure.
type PartialStreamError struct {
	Partial   string
	Fragments int
	Cause     error
}

func (e *PartialStreamError) Error() string {
	return fmt.Sprintf("stream failed after %d fragments: %v", e.Fragments, e.Cause)
}

func (e *PartialStreamError) Unwrap() []error {
	return []error{ErrPartialStream, e.Cause}
}

// Kind classifies err for callers that report it over a wire.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialStream):
		return "partial_stream"
	case errors.Is(err, ErrGeneration):
		return "generation"
	default:
		return "unknown"
	}
}
