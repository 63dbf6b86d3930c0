// Package model defines the contract between the generation loop and a model
// backend. A Model holds immutable weights; every request gets its own
// Session carrying the mutable decode state.
package model

import "context"

// Info describes a loaded model.
type Info struct {
	Name          string
	Backend       string
	VocabSize     int
	ContextLength int
}

// Model is a loaded set of weights. Implementations must allow NewSession to
// be called again after a previous session failed.
type Model interface {
	Info() Info
	// NewSession returns fresh decode state positioned at the start of a sequence.
	NewSession() (Session, error)
	Close() error
}

// Session is the mutable decode state of one request. It is never shared
// between requests and is not safe for concurrent use.
type Session interface {
	// Step feeds tokens, advancing the state by len(tokens) positions, and
	// returns logits over the vocabulary for the next position. An empty
	// tokens slice returns the logits of the current state.
	Step(ctx context.Context, tokens []int) ([]float32, error)
	// Position is the number of tokens consumed so far.
	Position() int
	Close() error
}
