package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads the questionnaire YAML file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Questionnaire
	onChange []func(*Questionnaire)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Loader{path: path, current: cfg}, nil
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Config returns the latest configuration.
func (l *Loader) Config() *Questionnaire {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked after every successful reload.
func (l *Loader) OnChange(fn func(*Questionnaire)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch hot-reloads the config on file writes until the returned stop
// function is called.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if _, err := l.Reload(); err != nil {
					slog.Warn("config reload failed, keeping previous", "path", l.path, "err", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload re-reads the file, validates it and notifies callbacks. An invalid
// file leaves the current configuration in place.
func (l *Loader) Reload() (*Questionnaire, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Questionnaire), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

// Load reads and decodes path and applies defaults. It does not validate.
func Load(path string) (*Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML bytes and applies defaults.
func Parse(data []byte) (*Questionnaire, error) {
	var cfg Questionnaire
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Questionnaire) {
	if cfg.Engine.MaxSessions == 0 {
		cfg.Engine.MaxSessions = 10000
	}
	if cfg.Engine.SessionTTLMs == 0 {
		cfg.Engine.SessionTTLMs = 2 * 60 * 60 * 1000
	}
	if cfg.Engine.LookupWorkers == 0 {
		cfg.Engine.LookupWorkers = 4
	}
	if cfg.Engine.LookupQueueDepth == 0 {
		cfg.Engine.LookupQueueDepth = 100
	}
	if cfg.Engine.LookupTimeoutMs == 0 {
		cfg.Engine.LookupTimeoutMs = 3000
	}
}
