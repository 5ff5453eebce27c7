package gemini

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/llm"
	"github.com/papercomputeco/lexchat/pkg/logger"
)

// streamEvent is one SSE payload. Mid-stream failures arrive as an error object.
type streamEvent struct {
	llm.StreamChunk
	Error *llm.ErrorDetail `json:"error,omitempty"`
}

// eventReader pulls one SSE event per Recv from the response body.
type eventReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *zap.Logger
	pending error
	done    bool
}

func newEventReader(body io.ReadCloser, logger *zap.Logger) *eventReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &eventReader{
		body:    body,
		scanner: scanner,
		logger:  logger,
	}
}

// Recv returns the text of the next event that carries any, io.EOF at the
// end of the stream, or the failure that ended it.
func (r *eventReader) Recv() (string, error) {
	for {
		if r.pending != nil {
			err := r.pending
			r.pending = nil
			r.done = true
			return "", err
		}
		if r.done {
			return "", io.EOF
		}

		data, err := r.nextData()
		if err != nil {
			r.done = true
			return "", err
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			r.done = true
			return "", fmt.Errorf("malformed stream event: %w", err)
		}

		if ev.Error != nil {
			r.done = true
			return "", &APIError{StatusCode: ev.Error.Code, Status: ev.Error.Status, Message: ev.Error.Message}
		}
		if ev.PromptFeedback != nil && ev.PromptFeedback.BlockReason != "" {
			r.done = true
			return "", &BlockedError{Reason: ev.PromptFeedback.BlockReason}
		}

		text := ev.Text()
		switch reason := ev.FinishReason(); reason {
		case "", llm.FinishReasonStop, llm.FinishReasonMaxTokens:
		default:
			// Deliver what arrived with the event, then fail.
			r.pending = &BlockedError{Reason: reason}
		}

		r.logger.Debug("streaming chunk",
			zap.String("finish_reason", ev.FinishReason()),
			zap.String("content", logger.Preview(text, 50)),
		)

		if text != "" {
			return text, nil
		}
	}
}

// nextData returns the data payload of the next SSE event.
func (r *eventReader) nextData() (string, error) {
	var data strings.Builder
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				return data.String(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(line[5:]))
		}
	}
	if err := r.scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading stream: %w", err)
	}
	if data.Len() > 0 {
		return data.String(), nil
	}
	return "", io.EOF
}

// Close closes the body. It may be called while Recv is blocked reading it,
// so it leaves the reader's own state to Recv.
func (r *eventReader) Close() error {
	return r.body.Close()
}
