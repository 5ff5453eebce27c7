package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/lexchat/pkg/merkle"
)

// Store is the in-memory transcript of a single session. Turns are only ever
// appended. A Store lives exactly as long as its session.
type Store struct {
	mu     sync.RWMutex
	turns  []Turn
	index  map[string]int
	head   *merkle.Node
	storer *merkle.MemoryStorer
	now    func() time.Time
}

// NewStore returns an empty transcript.
func NewStore() *Store {
	return &Store{
		turns:  make([]Turn, 0, 16),
		index:  make(map[string]int),
		storer: merkle.NewMemoryStorer(),
		now:    time.Now,
	}
}

// Append commits turn at the end of the transcript and returns it with its
// content address and timestamp filled in.
func (s *Store) Append(turn Turn) (Turn, error) {
	if !turn.Role.Valid() {
		return Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, turn.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := merkle.NewNode(merkle.Bucket{
		Type:    "message",
		Role:    string(turn.Role),
		Content: turn.Content,
	}, s.head)
	if err := s.storer.Put(context.Background(), node); err != nil {
		return Turn{}, fmt.Errorf("could not store turn: %w", err)
	}

	turn.Hash = node.Hash
	turn.ParentHash = ""
	if node.ParentHash != nil {
		turn.ParentHash = *node.ParentHash
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now().UTC()
	}

	s.index[turn.Hash] = len(s.turns)
	s.turns = append(s.turns, turn)
	s.head = node
	return turn, nil
}

// All returns a copy of the transcript in insertion order.
func (s *Store) All() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of committed turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Last returns the most recent turn.
func (s *Store) Last() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Get looks a turn up by its content address.
func (s *Store) Get(hash string) (Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[hash]
	if !ok {
		return Turn{}, merkle.ErrNotFound{Hash: hash}
	}
	return s.turns[i], nil
}

// Context returns the turns leading up to and including hash, oldest first.
func (s *Store) Context(hash string) ([]Turn, error) {
	ancestry, err := s.storer.Ancestry(context.Background(), hash)
	if err != nil {
		return nil, err
	}

	out := make([]Turn, 0, len(ancestry))
	for i := len(ancestry) - 1; i >= 0; i-- {
		t, err := s.Get(ancestry[i].Hash)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
