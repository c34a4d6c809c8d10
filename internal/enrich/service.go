package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/questionflow/internal/metrics"
)

var (
	// ErrQueueFull is returned when the lookup queue has no room.
	ErrQueueFull = errors.New("lookup queue full")
	// ErrStopped is returned once the service's workers have been stopped.
	ErrStopped = errors.New("lookup service stopped")
)

// Options configures a Service.
type Options struct {
	Workers    int
	QueueDepth int
	Timeout    time.Duration
}

type request struct {
	lookuper Lookuper
	input    string
}

// Service runs lookups on a bounded worker pool with a per-call timeout.
type Service struct {
	registry atomic.Pointer[Registry]
	pool     *workerPool[request, Result]
	timeout  time.Duration
}

// NewService starts the worker pool. Workers stop when ctx is done or Drain
// is called.
func NewService(ctx context.Context, reg *Registry, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 1
	}
	s := &Service{timeout: opts.Timeout}
	s.registry.Store(reg)
	s.pool = newWorkerPool(ctx, opts.Workers, opts.QueueDepth, func(ctx context.Context, r request) (Result, error) {
		return r.lookuper.Lookup(ctx, r.input)
	})
	return s
}

// SwapRegistry atomically replaces the lookup sources.
func (s *Service) SwapRegistry(reg *Registry) {
	s.registry.Store(reg)
}

// Registry returns the active registry.
func (s *Service) Registry() *Registry {
	return s.registry.Load()
}

// Lookup resolves input with the source registered for kind. It returns
// ErrUnknownKind, ErrQueueFull or a context error on timeout.
func (s *Service) Lookup(ctx context.Context, kind, input string) (Result, error) {
	l, err := s.registry.Load().Get(kind)
	if err != nil {
		metrics.LookupsExecuted.WithLabelValues(kind, "unknown").Inc()
		return Result{}, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res := s.pool.Submit(ctx, request{lookuper: l, input: input})
	s.reportQueue()
	if res == nil && s.pool.stopped() {
		metrics.LookupsExecuted.WithLabelValues(kind, "stopped").Inc()
		return Result{}, ErrStopped
	}
	if res == nil {
		metrics.LookupsExecuted.WithLabelValues(kind, "rejected").Inc()
		slog.Warn("lookup queue full, dropping request", "kind", kind)
		return Result{}, ErrQueueFull
	}

	select {
	case r := <-res:
		metrics.LookupDuration.Observe(float64(time.Since(start).Milliseconds()))
		if r.err != nil {
			metrics.LookupsExecuted.WithLabelValues(kind, "error").Inc()
			return Result{}, fmt.Errorf("lookup %s: %w", kind, r.err)
		}
		metrics.LookupsExecuted.WithLabelValues(kind, "ok").Inc()
		return r.value, nil
	case <-s.pool.done:
		metrics.LookupsExecuted.WithLabelValues(kind, "stopped").Inc()
		return Result{}, ErrStopped
	case <-ctx.Done():
		metrics.LookupsExecuted.WithLabelValues(kind, "timeout").Inc()
		slog.Debug("lookup abandoned", "kind", kind, "err", ctx.Err())
		return Result{}, fmt.Errorf("lookup %s: %w", kind, ctx.Err())
	}
}

// QueueUtilization returns current queue fill (0–1).
func (s *Service) QueueUtilization() float64 {
	return float64(s.pool.QueueLen()) / float64(s.pool.QueueCap())
}

func (s *Service) reportQueue() {
	metrics.LookupQueueUtilization.Set(s.QueueUtilization())
}

// Drain stops accepting lookups and waits for in-flight ones.
func (s *Service) Drain() {
	s.pool.Drain()
}
