package chat

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/generator"
	"github.com/papercomputeco/lexchat/pkg/session"
)

// Reply is an in-flight assistant reply. Drain it with Next; when the stream
// completes cleanly the assistant turn is committed exactly once. Close may be
// called from another goroutine while Next is blocked.
type Reply struct {
	conv   *Conversation
	stream *generator.Stream
	user   session.Turn

	mu       sync.Mutex
	turn     session.Turn
	err      error
	resolved bool
}

// Next advances to the next fragment.
func (r *Reply) Next() bool {
	if r.Done() {
		return false
	}
	if r.stream.Next() {
		return true
	}
	r.resolve()
	return false
}

// Fragment returns the current fragment.
func (r *Reply) Fragment() string {
	return r.stream.Fragment()
}

// Text returns everything received so far.
func (r *Reply) Text() string {
	return r.stream.Text()
}

// UserTurn returns the committed user turn this reply answers.
func (r *Reply) UserTurn() session.Turn {
	return r.user
}

// Turn returns the committed assistant turn. It is the zero Turn until the
// reply has completed successfully.
func (r *Reply) Turn() session.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn
}

// Err returns why the reply was not committed, if it was not.
func (r *Reply) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done reports whether the reply has been resolved either way.
func (r *Reply) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// Close abandons the reply if it is still open. Nothing is committed.
func (r *Reply) Close() error {
	if r.Done() {
		return nil
	}
	err := r.stream.Close()
	r.resolve()
	return err
}

// resolve settles the reply once; later calls are no-ops.
func (r *Reply) resolve() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return
	}
	r.resolved = true
	defer r.conv.release()

	if err := r.stream.Err(); err != nil {
		r.err = err
		r.conv.logger.Warn("assistant turn dropped",
			zap.String("kind", generator.Kind(err)),
			zap.Int("partial_len", len(r.stream.Text())),
			zap.Error(err),
		)
		return
	}

	turn, err := r.conv.store.Append(session.AssistantTurn(r.stream.Text()))
	if err != nil {
		r.err = fmt.Errorf("could not append assistant turn: %w", err)
		return
	}
	r.turn = turn
	r.conv.logger.Debug("assistant turn committed",
		zap.String("hash", shortHash(turn.Hash)),
		zap.Int("fragments", r.stream.Count()),
	)
}
