package generator

import (
	"errors"
	"io"
	"iter"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/logger"
)

// State is the lifecycle position of a Stream.
type State int

const (
	StateNotStarted State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stream is a lazy, finite, single-use sequence of reply fragments.
// Use it like bufio.Scanner:
//
//	for s.Next() {
//		fmt.Print(s.Fragment())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Once Next has returned false it keeps returning false. Close may be called
// from another goroutine while Next is blocked; Next then returns false.
type Stream struct {
	reader  FragmentReader
	logger  *zap.Logger
	onError func(error)

	mu      sync.Mutex
	state   State
	current string
	text    strings.Builder
	count   int
	err     error
}

func newStream(reader FragmentReader, logger *zap.Logger, onError func(error)) *Stream {
	return &Stream{
		reader:  reader,
		logger:  logger,
		onError: onError,
	}
}

// Next advances to the next non-empty fragment.
func (s *Stream) Next() bool {
	s.mu.Lock()
	if s.done() {
		s.current = ""
		s.mu.Unlock()
		return false
	}
	s.state = StateStreaming
	s.mu.Unlock()

	for {
		frag, err := s.reader.Recv()

		s.mu.Lock()
		if s.done() {
			// closed while Recv was blocked
			s.current = ""
			s.mu.Unlock()
			return false
		}
		if errors.Is(err, io.EOF) {
			s.finish(nil)
			return false
		}
		if err != nil {
			s.finish(err)
			return false
		}
		if frag == "" {
			s.mu.Unlock()
			continue
		}

		s.current = frag
		s.count++
		s.text.WriteString(frag)
		s.mu.Unlock()
		return true
	}
}

// Fragment returns the fragment produced by the last successful Next.
func (s *Stream) Fragment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Text returns the concatenation of every fragment delivered so far.
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Count returns the number of fragments delivered so far.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// State reports where the stream is in its lifecycle.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that ended the stream, or nil. It is a
// *GenerationError when nothing had been delivered and a
// *PartialStreamError otherwise.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Fragments adapts the stream to a range-over-func sequence. Check Err after
// the loop.
func (s *Stream) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		for s.Next() {
			if !yield(s.Fragment()) {
				return
			}
		}
	}
}

// Close releases the underlying reader. Closing before completion marks the
// stream failed with ErrStreamClosed; the remote side is not notified and the
// error reporter is not called.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.done() {
		s.mu.Unlock()
		return nil
	}
	s.current = ""
	s.state = StateFailed
	s.err = s.failure(ErrStreamClosed)
	count := s.count
	s.mu.Unlock()

	s.logger.Debug("stream abandoned", zap.Int("fragments", count))
	return s.reader.Close()
}

// done must be called with mu held.
func (s *Stream) done() bool {
	return s.state == StateCompleted || s.state == StateFailed
}

// finish is called with mu held and releases it.
func (s *Stream) finish(cause error) {
	s.current = ""
	if cause == nil {
		s.state = StateCompleted
	} else {
		s.state = StateFailed
		s.err = s.failure(cause)
	}
	failed, count, text := s.err, s.count, s.text.String()
	s.mu.Unlock()

	if closeErr := s.reader.Close(); closeErr != nil {
		s.logger.Warn("failed to close fragment reader", zap.Error(closeErr))
	}

	if cause == nil {
		s.logger.Debug("stream complete",
			zap.Int("fragments", count),
			zap.String("content_preview", logger.Preview(text, 200)),
		)
		return
	}
	if s.onError != nil {
		s.onError(failed)
	}
}

// failure must be called with mu held.
func (s *Stream) failure(cause error) error {
	if s.count == 0 {
		return &GenerationError{Cause: cause}
	}
	return &PartialStreamError{Partial: s.text.String(), Fragments: s.count, Cause: cause}
}
