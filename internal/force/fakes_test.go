package force

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/pageforce/pkg/types"
)

// fakePage is a scriptable PageView. Tests drive it single-threaded through
// a synchronous bus, so no locking is needed.
type fakePage struct {
	index      int
	state      types.RenderingState
	paint      chan struct{}
	hasText    bool
	enqueued   int
	enqueueErr error
}

func (p *fakePage) Index() int                           { return p.index }
func (p *fakePage) RenderingState() types.RenderingState { return p.state }
func (p *fakePage) HasTextContent() bool                 { return p.hasText }

func (p *fakePage) PaintDone() <-chan struct{} {
	if p.paint == nil {
		return nil
	}
	return p.paint
}

func (p *fakePage) EnqueueRender() error {
	p.enqueued++
	return p.enqueueErr
}

type fakeViewer struct {
	pages   []*fakePage
	retains bool
	viewErr map[int]error

	// pageCount overrides len(pages) when set, for mid-cycle size changes.
	pageCount int
}

func newFakeViewer(n int) *fakeViewer {
	v := &fakeViewer{retains: true}
	for i := 0; i < n; i++ {
		v.pages = append(v.pages, &fakePage{index: i})
	}
	return v
}

func (v *fakeViewer) PageCount() int {
	if v.pageCount != 0 {
		return v.pageCount
	}
	return len(v.pages)
}

func (v *fakeViewer) RetainsTextLayers() bool { return v.retains }

func (v *fakeViewer) View(index int) (PageView, error) {
	if err := v.viewErr[index]; err != nil {
		return nil, err
	}
	if index < 0 || index >= len(v.pages) {
		return nil, fmt.Errorf("no page view at index %d", index)
	}
	return v.pages[index], nil
}

// fakeBus delivers synchronously, modelling the single-threaded dispatcher.
type fakeBus struct {
	nextID       int
	subs         map[string]map[int]func(interface{})
	emitted      []busEvent
	unsubscribes int
}

type busEvent struct {
	event   string
	payload interface{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string]map[int]func(interface{}))}
}

func (b *fakeBus) Subscribe(event string, h func(interface{})) func() {
	if b.subs[event] == nil {
		b.subs[event] = make(map[int]func(interface{}))
	}
	id := b.nextID
	b.nextID++
	b.subs[event][id] = h

	return func() {
		if _, ok := b.subs[event][id]; ok {
			delete(b.subs[event], id)
			b.unsubscribes++
		}
	}
}

func (b *fakeBus) Emit(event string, payload interface{}) {
	b.emitted = append(b.emitted, busEvent{event: event, payload: payload})

	handlers := make([]func(interface{}), 0, len(b.subs[event]))
	for _, h := range b.subs[event] {
		handlers = append(handlers, h)
	}
	for _, h := range handlers {
		h(payload)
	}
}

func (b *fakeBus) subscriberCount(event string) int {
	return len(b.subs[event])
}

func (b *fakeBus) terminalSignals() []*types.DocumentRendered {
	var out []*types.DocumentRendered
	for _, e := range b.emitted {
		if e.event == types.SignalDocumentRendered {
			out = append(out, e.payload.(*types.DocumentRendered))
		}
	}
	return out
}

type fakeProgress struct {
	percents []int
	shown    bool
	hidden   bool
}

func (p *fakeProgress) SetPercent(pct int) { p.percents = append(p.percents, pct) }
func (p *fakeProgress) Show()              { p.shown = true }
func (p *fakeProgress) Hide()              { p.hidden = true }

type fakeNotifier struct {
	notices []string
}

func (n *fakeNotifier) Notify(message string) { n.notices = append(n.notices, message) }

// fakeText serves page text by 1-based page number; absent entries are
// missing containers.
type fakeText map[int]string

func (t fakeText) PageText(pageNumber int) (string, error) {
	text, ok := t[pageNumber]
	if !ok {
		return "", fmt.Errorf("no text container for page %d", pageNumber)
	}
	return text, nil
}

type fakeMetrics struct {
	started    int
	finished   map[string]int
	pages      int
	duplicates int
	viewFaults int
	reforces   int
	progress   []int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{finished: make(map[string]int)}
}

func (m *fakeMetrics) CycleStarted() { m.started++ }
func (m *fakeMetrics) CycleFinished(outcome string, _ time.Duration) {
	m.finished[outcome]++
}
func (m *fakeMetrics) PageRendered()    { m.pages++ }
func (m *fakeMetrics) Progress(pct int) { m.progress = append(m.progress, pct) }
func (m *fakeMetrics) DuplicateEvent()  { m.duplicates++ }
func (m *fakeMetrics) ViewFault()       { m.viewFaults++ }
func (m *fakeMetrics) WatchdogReforce() { m.reforces++ }

// testRig bundles a Forcer with its fakes. The watchdog interval is set
// far out so tests drive ticks explicitly via Session.watchdogTick.
type testRig struct {
	viewer   *fakeViewer
	bus      *fakeBus
	progress *fakeProgress
	notifier *fakeNotifier
	metrics  *fakeMetrics
	forcer   *Forcer
}

func newTestRig(pages int, cfg Config, text TextSource) *testRig {
	r := &testRig{
		viewer:   newFakeViewer(pages),
		bus:      newFakeBus(),
		progress: &fakeProgress{},
		notifier: &fakeNotifier{},
		metrics:  newFakeMetrics(),
	}

	if cfg.WatchdogInterval == 0 {
		cfg.WatchdogInterval = time.Hour
	}

	forcer, err := New(cfg, Deps{
		Viewer:   r.viewer,
		Bus:      r.bus,
		Progress: r.progress,
		Notifier: r.notifier,
		Text:     text,
		Metrics:  r.metrics,
	}, zap.NewNop())
	if err != nil {
		panic(err)
	}
	r.forcer = forcer
	return r
}

// renderPage marks the page's text layer realized and delivers its
// rendered event, the way the external renderer completes a forced page.
func (r *testRig) renderPage(pageNumber int) {
	r.viewer.pages[pageNumber-1].hasText = true
	r.bus.Emit(types.SignalTextLayerRendered, pageNumber)
}
