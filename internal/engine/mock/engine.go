// Package mock provides a scripted streaming engine for running the gateway
// without model infrastructure. It simulates realistic incremental decoding:
// text only advances once a full decode window of audio has accumulated, and
// Finalize settles the transcript.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/duychung-keytechx/speech-demo/internal/engine"
)

// ScriptedUtterance is a canned transcript revealed one decode window at a time.
type ScriptedUtterance struct {
	Language string
	Partials []string // progressively refined transcripts
	Final    string
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []ScriptedUtterance{
	{
		Language: "en",
		Partials: []string{"I want", "I want to cancel", "I want to cancel my"},
		Final:    "I want to cancel my subscription",
	},
	{
		Language: "en",
		Partials: []string{"Can you", "Can you help me"},
		Final:    "Can you help me with my account",
	},
	{
		Language: "en",
		Partials: []string{"I've been", "I've been waiting for"},
		Final:    "I've been waiting for over an hour",
	},
}

var (
	errForeignState   = errors.New("mock: state was not created by this engine")
	errFinalizedState = errors.New("mock: state already finalized")
)

type state struct {
	mu        sync.Mutex
	utterance ScriptedUtterance
	window    int // decode window length in samples
	buffered  int // samples accumulated below one window
	emitted   int // partials revealed so far
	finalized bool
}

func (s *state) result() engine.Result {
	if s.emitted == 0 {
		return engine.Result{}
	}
	if s.finalized || s.emitted > len(s.utterance.Partials) {
		return engine.Result{Language: s.utterance.Language, Text: s.utterance.Final}
	}
	return engine.Result{Language: s.utterance.Language, Text: s.utterance.Partials[s.emitted-1]}
}

// Engine implements engine.Engine with scripted transcripts.
type Engine struct {
	mu         sync.Mutex
	utterances []ScriptedUtterance
	next       int
}

// New creates a mock engine cycling through the default utterances.
func New() *Engine {
	return &Engine{utterances: DefaultUtterances}
}

// NewWithScript creates a mock engine with a custom utterance script.
func NewWithScript(utterances []ScriptedUtterance) *Engine {
	if len(utterances) == 0 {
		utterances = DefaultUtterances
	}
	return &Engine{utterances: utterances}
}

// InitState creates a fresh decode state bound to the next scripted utterance.
func (e *Engine) InitState(_ context.Context, cfg engine.Config) (engine.State, error) {
	e.mu.Lock()
	utt := e.utterances[e.next%len(e.utterances)]
	e.next++
	e.mu.Unlock()

	window := int(cfg.ChunkSizeSec * float64(cfg.SampleRateHz))
	if window <= 0 {
		return nil, fmt.Errorf("mock: invalid decode window %vs at %d Hz", cfg.ChunkSizeSec, cfg.SampleRateHz)
	}
	return &state{utterance: utt, window: window}, nil
}

// Step buffers samples and reveals the next scripted partial for every full
// decode window accumulated. Short and empty slices are accepted.
func (e *Engine) Step(_ context.Context, st engine.State, samples []float32) (engine.Result, error) {
	s, ok := st.(*state)
	if !ok {
		return engine.Result{}, errForeignState
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return engine.Result{}, errFinalizedState
	}

	s.buffered += len(samples)
	for s.buffered >= s.window {
		s.buffered -= s.window
		s.emitted++
	}
	return s.result(), nil
}

// Finalize flushes any buffered audio and settles on the final transcript.
func (e *Engine) Finalize(_ context.Context, st engine.State) (engine.Result, error) {
	s, ok := st.(*state)
	if !ok {
		return engine.Result{}, errForeignState
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return engine.Result{}, errFinalizedState
	}

	if s.buffered > 0 || s.emitted > 0 {
		s.emitted = len(s.utterance.Partials) + 1
	}
	s.finalized = true
	s.buffered = 0
	return s.result(), nil
}
