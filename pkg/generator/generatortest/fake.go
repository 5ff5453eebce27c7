// Package generatortest provides a scripted generator.Service for tests.
package generatortest

import (
	"context"
	"io"
	"sync"

	"github.com/papercomputeco/lexchat/pkg/generator"
	"github.com/papercomputeco/lexchat/pkg/llm"
)

// Script is the canned behavior of one call.
type Script struct {
	// CallErr fails the call itself; no reader is returned.
	CallErr error

	// Fragments are yielded in order.
	Fragments []string

	// StreamErr, if set, is returned by Recv after all Fragments.
	StreamErr error

	// Block makes Recv wait after all Fragments until Close is called, then
	// fail with io.ErrUnexpectedEOF, like a connection torn down mid-read.
	Block bool
}

// Service replays Scripts in order, one per call, repeating the last one.
type Service struct {
	mu       sync.Mutex
	scripts  []Script
	requests []*llm.GenerateRequest
	readers  []*Reader
}

// NewService returns a Service that plays scripts.
func NewService(scripts ...Script) *Service {
	return &Service{scripts: scripts}
}

// Reply is shorthand for a service that streams fragments successfully.
func Reply(fragments ...string) *Service {
	return NewService(Script{Fragments: fragments})
}

// Fail is shorthand for a service whose call fails with err.
func Fail(err error) *Service {
	return NewService(Script{CallErr: err})
}

func (s *Service) StreamGenerateContent(_ context.Context, req *llm.GenerateRequest) (generator.FragmentReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	script := Script{}
	if n := len(s.requests); n <= len(s.scripts) {
		script = s.scripts[n-1]
	} else if len(s.scripts) > 0 {
		script = s.scripts[len(s.scripts)-1]
	}

	if script.CallErr != nil {
		return nil, script.CallErr
	}
	r := &Reader{
		fragments: append([]string(nil), script.Fragments...),
		err:       script.StreamErr,
		block:     script.Block,
		blocked:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	s.readers = append(s.readers, r)
	return r, nil
}

// Requests returns every request received so far.
func (s *Service) Requests() []*llm.GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*llm.GenerateRequest(nil), s.requests...)
}

// Calls returns the number of calls made.
func (s *Service) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Readers returns the readers handed out so far.
func (s *Service) Readers() []*Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Reader(nil), s.readers...)
}

// Reader is a scripted generator.FragmentReader. Close may be called while
// Recv is blocked.
type Reader struct {
	mu        sync.Mutex
	fragments []string
	err       error
	pos       int
	closed    bool

	block     bool
	blocked   chan struct{}
	release   chan struct{}
	blockOnce sync.Once
	closeOnce sync.Once
}

func (r *Reader) Recv() (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", io.ErrClosedPipe
	}
	if r.pos < len(r.fragments) {
		f := r.fragments[r.pos]
		r.pos++
		r.mu.Unlock()
		return f, nil
	}
	r.mu.Unlock()

	if r.block {
		r.blockOnce.Do(func() { close(r.blocked) })
		<-r.release
		return "", io.ErrUnexpectedEOF
	}
	if r.err != nil {
		return "", r.err
	}
	return "", io.EOF
}

func (r *Reader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.closeOnce.Do(func() { close(r.release) })
	return nil
}

// Closed reports whether Close was called.
func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Blocked is closed once Recv starts waiting on a Block script.
func (r *Reader) Blocked() <-chan struct{} {
	return r.blocked
}
