// Package chat runs the turn loop: a user turn is committed, a reply is
// streamed, and the assistant turn is committed only once the whole reply has
// arrived without error.
//
// A reply that fails mid-stream is dropped. Fragments already shown to the
// user stay on screen, but the transcript never gains a truncated assistant
// turn; the error carries the partial text for callers that want it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/generator"
	"github.com/papercomputeco/lexchat/pkg/session"
)

// FallbackReply is shown in place of a reply that could not be generated.
// It is never committed to the transcript.
const FallbackReply = "Desculpe, não consegui gerar uma resposta."

// ErrTurnInProgress is returned by Submit while a previous reply is still open.
var ErrTurnInProgress = errors.New("chat: a turn is already in progress")

// Generator is the subset of *generator.Generator used here.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*generator.Stream, error)
}

// Conversation binds a transcript to a generator.
type Conversation struct {
	store     *session.Store
	generator Generator
	logger    *zap.Logger

	mu   sync.Mutex
	busy bool
}

// NewConversation returns a Conversation over store. A nil logger discards.
func NewConversation(store *session.Store, gen Generator, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{
		store:     store,
		generator: gen,
		logger:    logger,
	}
}

// Store returns the underlying transcript.
func (c *Conversation) Store() *session.Store {
	return c.store
}

// Submit commits content as a user turn and starts generating the reply.
// If generation fails the user turn stays and no reply is returned.
func (c *Conversation) Submit(ctx context.Context, content string) (*Reply, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrTurnInProgress
	}
	c.busy = true
	c.mu.Unlock()

	userTurn, err := c.store.Append(session.UserTurn(content))
	if err != nil {
		c.release()
		return nil, fmt.Errorf("could not append user turn: %w", err)
	}

	c.logger.Debug("user turn committed",
		zap.String("hash", shortHash(userTurn.Hash)),
		zap.Int("transcript_len", c.store.Len()),
	)

	stream, err := c.generator.Generate(ctx, content)
	if err != nil {
		c.release()
		return nil, err
	}

	return &Reply{conv: c, stream: stream, user: userTurn}, nil
}

// Ask submits content and drains the reply, writing each fragment to w.
// It returns the committed assistant turn.
func (c *Conversation) Ask(ctx context.Context, content string, w io.Writer) (session.Turn, error) {
	reply, err := c.Submit(ctx, content)
	if err != nil {
		return session.Turn{}, err
	}
	defer reply.Close()

	for reply.Next() {
		if _, err := io.WriteString(w, reply.Fragment()); err != nil {
			return session.Turn{}, fmt.Errorf("could not write fragment: %w", err)
		}
	}
	if err := reply.Err(); err != nil {
		return session.Turn{}, err
	}
	return reply.Turn(), nil
}

func (c *Conversation) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
