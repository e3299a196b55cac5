// Package force drives an external paginated viewer until every page's text
// layer is materialized, then declares the document rendered.
//
// The package renders nothing itself. It walks the viewer's page views,
// forces the next unrendered page onto the external rendering queue, nudges
// the renderer when it pauses a forced page, and aggregates the host's
// per-page rendered signals into a single document-level one. Optionally it
// gates a highlighting feature on a text-quality scan of the finished
// document.
package force

import (
	"time"

	"github.com/edgecomet/pageforce/pkg/types"
)

// PageView is the external renderer's per-page object. Implementations are
// supplied by a viewer adapter; the coordinator only reads state and asks
// for renders.
type PageView interface {
	// Index is the 0-based page index.
	Index() int

	// RenderingState reports the renderer's current state for this page.
	RenderingState() types.RenderingState

	// PaintDone returns the completion signal of the in-flight paint task,
	// or nil when no paint is in flight. The coordinator only ever tests
	// the returned channel for presence; it is never received from.
	PaintDone() <-chan struct{}

	// HasTextContent reports whether the page's text layer is realized with
	// at least one child node. An empty page still gets a placeholder
	// marker node once rendered, so false means "not yet rendered".
	HasTextContent() bool

	// EnqueueRender asks the external rendering queue to render this page.
	EnqueueRender() error
}

// Viewer is the host viewer surface the coordinator consumes.
type Viewer interface {
	// PageCount is the document's total page count.
	PageCount() int

	// RetainsTextLayers reports whether the viewer keeps text layers in the
	// DOM after rendering. Without retention the whole mechanism is
	// pointless and never starts.
	RetainsTextLayers() bool

	// View returns the page view at the given 0-based index.
	View(index int) (PageView, error)
}

// Bus is the host signal bus surface the coordinator needs.
type Bus interface {
	Subscribe(event string, h func(payload interface{})) func()
	Emit(event string, payload interface{})
}

// Progress drives the host progress dialog. Implementations are
// best-effort: lookup failures must be swallowed, never returned.
type Progress interface {
	SetPercent(pct int)
	Show()
	Hide()
}

// Notifier surfaces blocking user notices (capacity aborts, eligibility
// rejections).
type Notifier interface {
	Notify(message string)
}

// TextSource locates a page's realized text container and returns its text
// content. Page numbers are 1-based.
type TextSource interface {
	PageText(pageNumber int) (string, error)
}

// Cycle outcomes reported to Metrics.CycleFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeCapacity  = "capacity"
	OutcomeSkipped   = "skipped"
)

// Metrics receives cycle observability events.
type Metrics interface {
	CycleStarted()
	CycleFinished(outcome string, elapsed time.Duration)
	PageRendered()
	Progress(pct int)
	DuplicateEvent()
	ViewFault()
	WatchdogReforce()
}

// NopMetrics discards all observability events.
type NopMetrics struct{}

func (NopMetrics) CycleStarted()                       {}
func (NopMetrics) CycleFinished(string, time.Duration) {}
func (NopMetrics) PageRendered()                       {}
func (NopMetrics) Progress(int)                        {}
func (NopMetrics) DuplicateEvent()                     {}
func (NopMetrics) ViewFault()                          {}
func (NopMetrics) WatchdogReforce()                    {}

type nopProgress struct{}

func (nopProgress) SetPercent(int) {}
func (nopProgress) Show()          {}
func (nopProgress) Hide()          {}

type nopNotifier struct{}

func (nopNotifier) Notify(string) {}

// DefaultWatchdogInterval is how often a paused forced page is re-issued
// when no interval is configured.
const DefaultWatchdogInterval = 250 * time.Millisecond

// Config configures the render-forcing cycle.
type Config struct {
	// WatchdogInterval is the stall watchdog period. Zero uses
	// DefaultWatchdogInterval.
	WatchdogInterval time.Duration

	// MaxPages aborts the cycle for documents above this page count.
	// Zero disables the ceiling.
	MaxPages int

	Highlight HighlightConfig
}

// HighlightConfig configures the text-quality gate for the highlighting
// feature.
type HighlightConfig struct {
	Enabled bool

	// The document is eligible when the average word length falls strictly
	// inside (MinAverageWordLength, MaxAverageWordLength).
	MinAverageWordLength float64
	MaxAverageWordLength float64
}

// Deps are the external collaborators of a cycle. Viewer and Bus are
// required; the rest default to no-ops when nil.
type Deps struct {
	Viewer   Viewer
	Bus      Bus
	Progress Progress
	Notifier Notifier
	Text     TextSource
	Metrics  Metrics
}
