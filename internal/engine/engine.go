// Package engine defines the contract consumed from a streaming
// speech-to-text engine. The gateway never inspects engine internals; it
// holds an opaque per-session State and drives it through Step and Finalize.
package engine

import (
	"context"
	"errors"
)

// ErrModelUnavailable means no engine is loaded. Fatal for the request,
// non-fatal for the process.
var ErrModelUnavailable = errors.New("model not loaded")

// Config holds the streaming parameters fixed at session start.
type Config struct {
	// ChunkSizeSec is the engine's fixed decode window length in seconds.
	ChunkSizeSec float64
	// UnfixedChunks is the number of trailing decode windows kept
	// re-decodable for revision.
	UnfixedChunks int
	// UnfixedTokens is the number of trailing emitted tokens considered
	// provisional.
	UnfixedTokens int
	// SampleRateHz is the sample rate the engine expects.
	SampleRateHz int
	// LanguageCode hints the recognition language for providers that
	// require one. Empty means auto-detect where supported.
	LanguageCode string
}

// Result is the engine's current best transcript.
type Result struct {
	Language string
	Text     string
}

// State is an opaque per-session decode state, owned exclusively by the
// engine that produced it. It must never be mutated by two concurrent calls.
type State interface{}

// Engine is a stateful incremental transcriber.
//
// Engines own all buffering below the decode window: Step may be called with
// arbitrarily short (including empty) sample slices and may return unchanged
// text until enough audio has accumulated.
type Engine interface {
	// InitState creates a fresh decode state for a new session.
	InitState(ctx context.Context, cfg Config) (State, error)

	// Step feeds samples into the state and returns the current best
	// transcript. The state is mutated in place.
	Step(ctx context.Context, st State, samples []float32) (Result, error)

	// Finalize flushes the state and returns the final transcript. The
	// state must not be used again afterwards.
	Finalize(ctx context.Context, st State) (Result, error)
}
