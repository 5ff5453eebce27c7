// Package session holds the ordered transcript of one interactive chat session.
package session

import (
	"errors"
	"time"
)

// Role attributes a Turn to one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ErrInvalidRole is returned by Append for a role outside the enum.
var ErrInvalidRole = errors.New("session: invalid role")

// Turn is one committed utterance. Hash is the turn's content address and
// covers the whole preceding transcript through ParentHash.
type Turn struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Hash       string    `json:"hash,omitempty"`
	ParentHash string    `json:"parent_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserTurn is a convenience constructor.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn is a convenience constructor.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}
