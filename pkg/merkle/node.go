// Package merkle content-addresses conversation turns as a hash chain.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Bucket is the hashable payload of a node: one conversation turn.
type Bucket struct {
	Type    string `json:"type"` // always "message"
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Node represents a single content-addressed turn in the chain.
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous turn's hash.
	// This will be nil for the first turn of a session.
	ParentHash *string `json:"parent_hash"`

	Bucket Bucket `json:"bucket"`
}

// input is the canonical hash input.
type input struct {
	Bucket Bucket `json:"bucket"`
	Parent string `json:"parent,omitempty"`
}

// NewNode creates a new node with the computed hash for the provided bucket.
func NewNode(bucket Bucket, parent *Node) *Node {
	n := &Node{
		Bucket: bucket,
	}

	if parent != nil {
		h := parent.Hash
		n.ParentHash = &h
	}

	n.Hash = n.computeHash()
	return n
}

// computeHash calculates the content-addressed hash for a node.
func (n *Node) computeHash() string {
	i := &input{
		Bucket: n.Bucket,
	}

	if n.ParentHash != nil {
		i.Parent = *n.ParentHash
	}

	// encoding/json emits struct fields in declaration order, so this is canonical
	data, err := json.Marshal(i)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
