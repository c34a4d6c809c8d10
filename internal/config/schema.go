package config

import (
	"time"

	"github.com/gyaneshwarpardhi/questionflow/internal/question"
	"github.com/gyaneshwarpardhi/questionflow/internal/router"
)

// Questionnaire is the top-level YAML structure.
type Questionnaire struct {
	Version        string                       `yaml:"version"`
	Engine         EngineConf                   `yaml:"engine"`
	Store          StoreConf                    `yaml:"store"`
	Questions      []*question.Question         `yaml:"questions"` // seed pool
	Classification []router.Route               `yaml:"classification"`
	Injections     []InjectionDef               `yaml:"injections"`
	Lookups        map[string]map[string]string `yaml:"lookups"` // kind -> input -> text
}

// EngineConf holds session and lookup tuning.
type EngineConf struct {
	MaxSessions      int `yaml:"max_sessions"`
	SessionTTLMs     int `yaml:"session_ttl_ms"`
	LookupWorkers    int `yaml:"lookup_workers"`
	LookupQueueDepth int `yaml:"lookup_queue_depth"`
	LookupTimeoutMs  int `yaml:"lookup_timeout_ms"`
}

// SessionTTL returns the idle timeout after which a session is evicted.
func (c EngineConf) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMs) * time.Millisecond
}

// LookupTimeout returns the per-call enrichment timeout.
func (c EngineConf) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutMs) * time.Millisecond
}

// StoreConf points at the persisted question pool.
type StoreConf struct {
	Path string `yaml:"path"` // SQLite file; empty keeps the pool in memory
	Seed bool   `yaml:"seed"` // load Questions into an empty store on startup
}

// InjectionDef inserts several questions after Trigger is answered.
type InjectionDef struct {
	Trigger question.ID `yaml:"trigger"`
	Inserts []InsertDef `yaml:"inserts"`
}

// InsertDef is one injected question. An empty When inserts unconditionally.
type InsertDef struct {
	Question question.ID `yaml:"question"`
	When     string      `yaml:"when,omitempty"`
}
