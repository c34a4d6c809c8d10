package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/questionflow/internal/config"
	"github.com/gyaneshwarpardhi/questionflow/internal/engine"
	"github.com/gyaneshwarpardhi/questionflow/internal/enrich"
	"github.com/gyaneshwarpardhi/questionflow/internal/store"
)

const publishTimeout = 10 * time.Second

// Publisher rebuilds the live Flow from the persisted pool and the current
// config, then swaps it into the engine. Running sessions are unaffected.
type Publisher struct {
	store   store.Store
	loader  *config.Loader
	eng     *engine.Engine
	lookups *enrich.Service
}

// NewPublisher wires p to loader so every successful config reload is
// published.
func NewPublisher(st store.Store, loader *config.Loader, eng *engine.Engine, lookups *enrich.Service) *Publisher {
	p := &Publisher{store: st, loader: loader, eng: eng, lookups: lookups}
	loader.OnChange(func(cfg *config.Questionnaire) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.Apply(ctx, cfg); err != nil {
			slog.Warn("hot-reload skipped: flow rebuild failed", "err", err)
		}
	})
	return p
}

// Publish rebuilds from the current config.
func (p *Publisher) Publish(ctx context.Context) error {
	return p.Apply(ctx, p.loader.Config())
}

// Apply rebuilds from cfg. On error the previous Flow stays live.
func (p *Publisher) Apply(ctx context.Context, cfg *config.Questionnaire) error {
	qs, err := p.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	flow, err := engine.Build(qs, cfg)
	if err != nil {
		return fmt.Errorf("build flow: %w", err)
	}
	p.eng.SwapFlow(flow)
	if p.lookups != nil {
		p.lookups.SwapRegistry(enrich.FromTables(cfg.Lookups))
	}
	slog.Info("flow published", "questions", flow.Graph.Len(), "classification_entries", flow.Router.Len())
	return nil
}
