package force

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/edgecomet/pageforce/pkg/types"
)

// Forcer is the host-facing entry point. It wires the document-load signal
// to render-forcing cycles: each load constructs a fresh Session, and a
// load arriving while a cycle is still running aborts the stale one first.
type Forcer struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	mu     sync.Mutex
	active *Session
}

// New validates the collaborators and builds a Forcer. Viewer and Bus are
// required; Progress, Notifier and Metrics default to no-ops.
func New(cfg Config, deps Deps, log *zap.Logger) (*Forcer, error) {
	if deps.Viewer == nil {
		return nil, fmt.Errorf("viewer is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}

	if deps.Progress == nil {
		deps.Progress = nopProgress{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = DefaultWatchdogInterval
	}

	return &Forcer{cfg: cfg, deps: deps, log: log}, nil
}

// Install subscribes to the document-load signal so every load starts a
// fresh cycle. Returns the unsubscribe function.
func (f *Forcer) Install() func() {
	return f.deps.Bus.Subscribe(types.SignalDocumentLoad, func(interface{}) {
		f.Start()
	})
}

// Start begins a cycle for the currently loaded document, superseding any
// cycle still running. Returns the session and whether it started; a false
// return means a precondition failed and no terminal signal will fire.
func (f *Forcer) Start() (*Session, bool) {
	f.mu.Lock()
	if f.active != nil && !f.active.Done() {
		f.active.Abort("superseded by new document load")
	}
	s := newSession(f.cfg, f.deps, f.log)
	f.active = s
	f.mu.Unlock()

	return s, s.start()
}
