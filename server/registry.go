package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/pkg/session"
)

var errTooManySessions = errors.New("too many sessions")

// entry is one live session.
type entry struct {
	id        string
	createdAt time.Time
	conv      *chat.Conversation
}

// registry maps session ids to independent conversations. Each session owns
// its own transcript; nothing is shared between them.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	max      int
	gen      chat.Generator
	logger   *zap.Logger
}

func newRegistry(gen chat.Generator, max int, logger *zap.Logger) *registry {
	return &registry{
		sessions: make(map[string]*entry),
		max:      max,
		gen:      gen,
		logger:   logger,
	}
}

func (r *registry) create() (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return nil, errTooManySessions
	}

	id := uuid.NewString()
	e := &entry{
		id:        id,
		createdAt: time.Now().UTC(),
		conv:      chat.NewConversation(session.NewStore(), r.gen, r.logger.With(zap.String("session", id))),
	}
	r.sessions[id] = e
	return e, nil
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	return e, ok
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
