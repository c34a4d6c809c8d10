package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/questionflow/internal/config"
	"github.com/gyaneshwarpardhi/questionflow/internal/metrics"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the session cap is reached.
	ErrTooManySessions = errors.New("too many active sessions")
)

// Engine owns the live Flow and every respondent session. Sessions keep the
// Flow they started with; SwapFlow only affects new sessions.
type Engine struct {
	flow     atomic.Pointer[Flow]
	mu       sync.Mutex
	sessions map[string]*Session
	conf     config.EngineConf
	now      func() time.Time
}

// New creates an Engine serving flow.
func New(flow *Flow, conf config.EngineConf) *Engine {
	e := &Engine{
		sessions: make(map[string]*Session),
		conf:     conf,
		now:      time.Now,
	}
	e.flow.Store(flow)
	return e
}

// SwapFlow atomically replaces the Flow used for new sessions.
func (e *Engine) SwapFlow(f *Flow) {
	e.flow.Store(f)
}

// Flow returns the Flow new sessions start on.
func (e *Engine) Flow() *Flow {
	return e.flow.Load()
}

// Start creates a session on the current Flow.
func (e *Engine) Start() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.evictLocked()
	if e.conf.MaxSessions > 0 && len(e.sessions) >= e.conf.MaxSessions {
		metrics.SessionsRejected.Inc()
		return Snapshot{}, fmt.Errorf("%w (limit %d)", ErrTooManySessions, e.conf.MaxSessions)
	}
	s := NewSession(uuid.New().String(), e.flow.Load())
	e.sessions[s.ID()] = s
	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Set(float64(len(e.sessions)))
	slog.Info("session started", "session", s.ID(), "queue", len(s.queue))
	return s.Snapshot(), nil
}

// Submit answers the current question of session id.
func (e *Engine) Submit(id string, ans question.Answer) (Transition, Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	if !ok {
		return Transition{}, Snapshot{}, ErrSessionNotFound
	}
	tr, err := s.Submit(ans)
	if err != nil {
		return Transition{}, s.Snapshot(), err
	}
	return tr, s.Snapshot(), nil
}

// Get returns the current snapshot of session id.
func (e *Engine) Get(id string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return s.Snapshot(), nil
}

// Report returns the answered questions and score of session id.
func (e *Engine) Report(id string) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return Report{}, ErrSessionNotFound
	}
	return s.Report(), nil
}

// Discard drops session id.
func (e *Engine) Discard(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(e.sessions, id)
	metrics.ActiveSessions.Set(float64(len(e.sessions)))
	return nil
}

// ActiveSessions returns how many sessions are held.
func (e *Engine) ActiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Utilization returns held sessions / cap (0–1). Zero when uncapped.
func (e *Engine) Utilization() float64 {
	if e.conf.MaxSessions <= 0 {
		return 0
	}
	return float64(e.ActiveSessions()) / float64(e.conf.MaxSessions)
}

// Evict removes sessions idle for longer than the configured TTL and returns
// how many were removed.
func (e *Engine) Evict() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evictLocked()
}

func (e *Engine) evictLocked() int {
	ttl := e.conf.SessionTTL()
	if ttl <= 0 {
		return 0
	}
	cutoff := e.now().Add(-ttl)
	n := 0
	for id, s := range e.sessions {
		if s.UpdatedAt().Before(cutoff) {
			delete(e.sessions, id)
			n++
		}
	}
	if n > 0 {
		metrics.SessionsEvicted.Add(float64(n))
		metrics.ActiveSessions.Set(float64(len(e.sessions)))
		slog.Info("evicted idle sessions", "count", n)
	}
	return n
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (e *Engine) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			e.Evict()
		case <-ctx.Done():
			return
		}
	}
}
