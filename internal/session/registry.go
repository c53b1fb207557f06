// Package session provides the concurrent-safe registry of active
// transcription sessions with time-based expiry.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/duychung-keytechx/speech-demo/internal/engine"
	"github.com/duychung-keytechx/speech-demo/internal/observability/logging"
	"github.com/duychung-keytechx/speech-demo/internal/observability/metrics"
)

// ErrNotFound means the session id is unknown, expired, or already removed.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long a session survives without being touched.
const DefaultTTL = 10 * time.Minute

// Session is the per-client record pairing an engine state with timestamps
// and the transcript fields derived from the last engine call.
//
// All mutable fields are guarded by the per-session lock handed out by
// Registry.Acquire; at most one request operates on a session at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	removed atomic.Bool

	// Guarded by the session lock.
	LastSeen    time.Time
	EngineState engine.State
	Language    string
	Text        string
}

// Release gives up the exclusive access granted by Acquire. The handle must
// not be used after Release.
func (s *Session) Release() {
	s.mu.Unlock()
}

// Registry is the sole owner of live sessions. The registry-wide lock covers
// only map access; engine calls run under the per-session lock with the map
// lock released, so slow decodes never block unrelated sessions.
type Registry struct {
	eng    engine.Engine
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	sweeperStop chan struct{}
	sweeperDone chan struct{}
}

// NewRegistry creates a registry evicting sessions idle longer than ttl.
// eng may be nil when no model is loaded; Create then fails with
// engine.ErrModelUnavailable.
func NewRegistry(eng engine.Engine, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		eng:      eng,
		ttl:      ttl,
		now:      time.Now,
		logger:   logging.WithComponent("session-registry"),
		sessions: make(map[string]*Session),
	}
}

// newSessionID returns a fresh unguessable 128-bit random token.
func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create initializes fresh engine state and registers a new session for it.
// The engine is asked first; a failed init never leaves a half-registered
// session behind.
func (r *Registry) Create(ctx context.Context, cfg engine.Config) (string, error) {
	if r.eng == nil {
		return "", engine.ErrModelUnavailable
	}
	r.sweep()

	st, err := r.eng.InitState(ctx, cfg)
	if err != nil {
		return "", err
	}

	id := newSessionID()
	now := r.now()
	s := &Session{
		ID:          id,
		CreatedAt:   now,
		LastSeen:    now,
		EngineState: st,
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	metrics.DefaultMetrics.RecordSessionCreated()
	r.logger.Debug().Str("sessionId", id).Msg("Session created")
	return id, nil
}

// Acquire sweeps expired sessions, looks up id, refreshes its last-seen
// timestamp, and grants the caller exclusive access to the session until
// Release. A concurrent Acquire for the same id blocks until then.
func (r *Registry) Acquire(id string) (*Session, error) {
	r.sweep()

	r.mu.Lock()
	s := r.sessions[id]
	r.mu.Unlock()
	if s == nil {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	if s.removed.Load() {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if now := r.now(); now.After(s.LastSeen) {
		s.LastSeen = now
	}
	return s, nil
}

// Remove atomically detaches the session from the registry. Subsequent
// lookups of id report ErrNotFound and the id is never reused. The caller is
// responsible for finalizing the engine state if needed.
func (r *Registry) Remove(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	s.removed.Store(true)
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweep removes sessions idle longer than the TTL. It runs opportunistically
// inside Create and Acquire, amortizing cleanup across request traffic.
//
// A session whose per-session lock is held is skipped: it has an in-flight
// request, and that request's Acquire already refreshed its last-seen time.
func (r *Registry) sweep() {
	now := r.now()
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if now.Sub(s.LastSeen) > r.ttl {
			delete(r.sessions, id)
			s.removed.Store(true)
			expired = append(expired, s) // stays locked until finalized
		} else {
			s.mu.Unlock()
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		r.finalizeEvicted(s)
		s.mu.Unlock()
	}
}

// finalizeEvicted finalizes an expired session's engine state. Failures are
// logged and swallowed: a session that outlived its usefulness must not
// crash the sweep.
func (r *Registry) finalizeEvicted(s *Session) {
	if r.eng != nil {
		if _, err := r.eng.Finalize(context.Background(), s.EngineState); err != nil {
			r.logger.Warn().
				Err(err).
				Str("sessionId", s.ID).
				Msg("Finalize failed during eviction")
		}
	}
	metrics.DefaultMetrics.RecordSessionExpired(r.now().Sub(s.CreatedAt).Seconds())
	r.logger.Info().
		Str("sessionId", s.ID).
		Dur("age", r.now().Sub(s.CreatedAt)).
		Msg("Session expired")
}

// StartSweeper runs a periodic background sweep in addition to the
// opportunistic one, so abandoned sessions are still evicted when traffic
// stops entirely. Stopped by Shutdown.
func (r *Registry) StartSweeper(interval time.Duration) {
	if interval <= 0 || r.sweeperStop != nil {
		return
	}
	r.sweeperStop = make(chan struct{})
	r.sweeperDone = make(chan struct{})

	go func() {
		defer close(r.sweeperDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.logger.Info().Dur("interval", interval).Msg("Background sweep started")
		for {
			select {
			case <-r.sweeperStop:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

// Shutdown stops the background sweeper and finalizes all remaining sessions
// best-effort, blocking behind any in-flight requests.
func (r *Registry) Shutdown() {
	if r.sweeperStop != nil {
		close(r.sweeperStop)
		<-r.sweeperDone
		r.sweeperStop = nil
	}

	r.mu.Lock()
	remaining := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		delete(r.sessions, id)
		remaining = append(remaining, s)
	}
	r.mu.Unlock()

	for _, s := range remaining {
		s.mu.Lock()
		s.removed.Store(true)
		r.finalizeEvicted(s)
		s.mu.Unlock()
	}
}
