package force

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgecomet/pageforce/pkg/types"
)

type cycleState int

const (
	cycleIdle cycleState = iota
	cycleCollecting
	cycleDone
)

// Session is one render-forcing cycle over one loaded document. It is
// created fresh per document load and discarded at the terminal transition;
// no state survives across documents.
type Session struct {
	cfg      Config
	log      *zap.Logger
	viewer   Viewer
	bus      Bus
	progress Progress
	notifier Notifier
	text     TextSource
	metrics  Metrics

	id string

	// mu guards everything below. Handlers are invoked from the bus
	// dispatcher and from the watchdog goroutine.
	mu          sync.Mutex
	state       cycleState
	total       int
	done        map[int]bool
	forced      PageView
	dog         *watchdog
	unsubscribe func()
	started     time.Time
}

func newSession(cfg Config, deps Deps, log *zap.Logger) *Session {
	id := uuid.NewString()

	s := &Session{
		cfg:      cfg,
		log:      log.With(zap.String("cycle_id", id)),
		viewer:   deps.Viewer,
		bus:      deps.Bus,
		progress: deps.Progress,
		notifier: deps.Notifier,
		text:     deps.Text,
		metrics:  deps.Metrics,
		id:       id,
	}
	s.dog = newWatchdog(cfg.WatchdogInterval, s.watchdogTick)
	return s
}

// ID returns the cycle identifier used in logs and the terminal signal.
func (s *Session) ID() string {
	return s.id
}

// Done reports whether the cycle reached its terminal state.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == cycleDone
}

// start runs the entry preconditions and begins collecting. Reports whether
// the cycle actually started; a false return means no subscription was made
// and no terminal signal will ever fire.
func (s *Session) start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != cycleIdle {
		return false
	}

	if !s.viewer.RetainsTextLayers() {
		s.log.Info("Viewer does not retain text layers, forced rendering skipped")
		s.state = cycleDone
		s.metrics.CycleFinished(OutcomeSkipped, 0)
		return false
	}

	total := s.viewer.PageCount()
	if total <= 0 {
		s.log.Info("Document has no pages, forced rendering skipped")
		s.state = cycleDone
		s.metrics.CycleFinished(OutcomeSkipped, 0)
		return false
	}

	if s.cfg.MaxPages > 0 && total > s.cfg.MaxPages {
		s.log.Warn("Document exceeds page ceiling, forced rendering aborted",
			zap.Int("pages", total),
			zap.Int("max_pages", s.cfg.MaxPages))
		s.notifier.Notify(fmt.Sprintf(
			"This document has %d pages. Documents above %d pages are not prepared for full-text features.",
			total, s.cfg.MaxPages))
		s.state = cycleDone
		s.metrics.CycleFinished(OutcomeCapacity, 0)
		return false
	}

	s.total = total
	s.done = make(map[int]bool, total)
	s.state = cycleCollecting
	s.started = time.Now()
	s.metrics.CycleStarted()

	s.progress.Show()
	s.progress.SetPercent(0)

	s.unsubscribe = s.bus.Subscribe(types.SignalTextLayerRendered, s.onTextLayerRendered)

	s.log.Info("Forced rendering cycle started", zap.Int("pages", total))

	// Kick the cycle when the viewer is not already rendering on its own;
	// a no-op when the visible page has a paint in flight.
	if len(s.outstandingPaints()) == 0 && s.state == cycleCollecting {
		s.dog.arm()
		s.renderNextPage()
	}

	return true
}

// onTextLayerRendered consumes one host page-rendered event. Payload: the
// 1-based page number.
func (s *Session) onTextLayerRendered(payload interface{}) {
	pageNumber, ok := payload.(int)
	if !ok {
		s.log.Warn("Ignoring page-rendered event with unexpected payload",
			zap.Any("payload", payload))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != cycleCollecting {
		return
	}

	index := pageNumber - 1
	if index < 0 || index >= s.total {
		// Leave the watchdog alone: a garbage event must not stall a
		// paused forced page.
		s.log.Warn("Page-rendered event out of range",
			zap.Int("page", pageNumber),
			zap.Int("pages", s.total))
		return
	}

	s.dog.disarm()

	if s.done[index] {
		s.log.Warn("Duplicate page-rendered event", zap.Int("page", pageNumber))
		s.metrics.DuplicateEvent()
	} else {
		s.done[index] = true
		s.metrics.PageRendered()
		s.log.Debug("Page rendered",
			zap.Int("page", pageNumber),
			zap.Int("done", len(s.done)),
			zap.Int("total", s.total))
	}

	pct := int(math.Round(float64(len(s.done)) / float64(s.total) * 100))
	s.progress.SetPercent(pct)
	s.metrics.Progress(pct)

	if len(s.outstandingPaints()) > 0 {
		// The renderer is busy on its own; wait for its next event instead
		// of piling on another forced page.
		return
	}
	if s.state != cycleCollecting {
		// Iteration aborted the cycle defensively.
		return
	}

	if len(s.done) < s.total {
		s.dog.arm()
		s.renderNextPage()
		return
	}

	s.finishLocked()
}

// finishLocked runs the terminal transition: evaluate the highlight gate,
// unsubscribe exactly once, emit the document-level signal.
func (s *Session) finishLocked() {
	s.dog.disarm()

	var verdict *types.HighlightVerdict
	if s.cfg.Highlight.Enabled && s.text != nil {
		verdict = s.evaluateHighlight()
		if verdict.Eligible {
			s.log.Info("Document eligible for highlighting",
				zap.Float64("average_word_length", verdict.AverageWordLength),
				zap.Int("words", verdict.Words))
		} else {
			s.log.Warn("Document not eligible for highlighting",
				zap.Float64("average_word_length", verdict.AverageWordLength),
				zap.Int("words", verdict.Words),
				zap.Int("pages_missing", verdict.PagesMissing))
			s.notifier.Notify(
				"The text extracted from this document looks unreliable. Highlighting is disabled for it.")
		}
	}

	s.teardownLocked()
	s.progress.Hide()
	s.state = cycleDone

	elapsed := time.Since(s.started)
	s.metrics.CycleFinished(OutcomeCompleted, elapsed)
	s.log.Info("Document fully rendered",
		zap.Int("pages", s.total),
		zap.Duration("elapsed", elapsed))

	s.bus.Emit(types.SignalDocumentRendered, &types.DocumentRendered{
		CycleID:   s.id,
		Pages:     s.total,
		Duration:  elapsed,
		Highlight: verdict,
	})
}

// Abort tears the cycle down before completion. The terminal signal still
// fires, flagged as aborted, so hosts waiting on it are released.
func (s *Session) Abort(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked(reason)
}

func (s *Session) abortLocked(reason string) {
	if s.state != cycleCollecting {
		return
	}

	s.dog.disarm()
	s.teardownLocked()
	s.progress.Hide()
	s.state = cycleDone

	elapsed := time.Since(s.started)
	s.metrics.CycleFinished(OutcomeAborted, elapsed)
	s.log.Warn("Forced rendering cycle aborted", zap.String("reason", reason))

	s.bus.Emit(types.SignalDocumentRendered, &types.DocumentRendered{
		CycleID:  s.id,
		Pages:    s.total,
		Duration: elapsed,
		Aborted:  true,
	})
}

func (s *Session) teardownLocked() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// watchdogTick re-issues the render request for the forced page while the
// external renderer keeps it paused.
func (s *Session) watchdogTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != cycleCollecting || s.forced == nil {
		return
	}
	if s.forced.RenderingState() != types.StatePaused {
		return
	}

	s.metrics.WatchdogReforce()
	s.log.Debug("Re-issuing render for paused forced page",
		zap.Int("page", s.forced.Index()+1))

	if err := s.forced.EnqueueRender(); err != nil {
		s.log.Warn("Failed to re-enqueue paused page",
			zap.Int("page", s.forced.Index()+1),
			zap.Error(err))
	}
}
