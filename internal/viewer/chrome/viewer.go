// Package chrome adapts a PDF.js viewer running in a Chrome tab to the
// surfaces the force package consumes. All page inspection and render
// enqueueing happens through DevTools protocol evaluations against the
// in-page viewer application object.
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/edgecomet/pageforce/internal/force"
	"github.com/edgecomet/pageforce/pkg/types"
)

// Config configures the connection to the viewer tab.
type Config struct {
	// DevtoolsURL attaches to a running browser over the DevTools
	// protocol. Empty launches a headless browser instead.
	DevtoolsURL string

	// PageURL is navigated to after attaching, when set.
	PageURL string

	// ViewerObject is the global viewer application object, normally
	// "PDFViewerApplication".
	ViewerObject string

	// TextLayerClass is the CSS class of realized text layer containers.
	TextLayerClass string

	// ProgressDialogID is the DOM id of the progress dialog element.
	ProgressDialogID string

	AttachTimeout time.Duration
}

// Viewer drives one viewer tab. It implements the force package's Viewer,
// TextSource, Progress and Notifier surfaces.
type Viewer struct {
	cfg    Config
	logger *zap.Logger

	ctx             context.Context
	cancel          context.CancelFunc
	allocatorCancel context.CancelFunc

	// paintMarker is handed out whenever a page reports an in-flight paint.
	// Consumers only test it for presence, so one shared channel that never
	// closes is enough.
	paintMarker chan struct{}
}

// Attach connects to the viewer tab and verifies the viewer application
// object is reachable.
func Attach(ctx context.Context, cfg Config, logger *zap.Logger) (*Viewer, error) {
	if cfg.ViewerObject == "" {
		cfg.ViewerObject = "PDFViewerApplication"
	}
	if cfg.TextLayerClass == "" {
		cfg.TextLayerClass = "textLayer"
	}
	if cfg.AttachTimeout <= 0 {
		cfg.AttachTimeout = 10 * time.Second
	}

	v := &Viewer{
		cfg:         cfg,
		logger:      logger,
		paintMarker: make(chan struct{}),
	}

	var allocatorCtx context.Context
	if cfg.DevtoolsURL != "" {
		allocatorCtx, v.allocatorCancel = chromedp.NewRemoteAllocator(ctx, cfg.DevtoolsURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("mute-audio", true),
		)
		allocatorCtx, v.allocatorCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	v.ctx, v.cancel = chromedp.NewContext(allocatorCtx)

	attachCtx, cancel := context.WithTimeout(v.ctx, cfg.AttachTimeout)
	defer cancel()

	tasks := chromedp.Tasks{}
	if cfg.PageURL != "" {
		tasks = append(tasks, chromedp.Navigate(cfg.PageURL))
	}
	if err := chromedp.Run(attachCtx, tasks); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to attach to viewer tab: %w", err)
	}

	logger.Info("Attached to viewer tab",
		zap.String("devtools_url", cfg.DevtoolsURL),
		zap.String("page_url", cfg.PageURL))
	return v, nil
}

// Context returns the tab context, used to install the signal bridge.
func (v *Viewer) Context() context.Context {
	return v.ctx
}

// Close tears down the browser connection.
func (v *Viewer) Close() {
	if v.cancel != nil {
		v.cancel()
	}
	if v.allocatorCancel != nil {
		v.allocatorCancel()
	}
}

// eval runs a JavaScript expression in the tab and decodes its result.
func (v *Viewer) eval(expr string, out interface{}) error {
	return chromedp.Run(v.ctx, chromedp.Evaluate(expr, out))
}

// PageCount reports the loaded document's total page count, 0 when no
// document is loaded.
func (v *Viewer) PageCount() int {
	var count int
	expr := fmt.Sprintf(
		`(function(){var a=window[%s];return a&&a.pdfViewer?a.pdfViewer.pagesCount:0})()`,
		jsString(v.cfg.ViewerObject))
	if err := v.eval(expr, &count); err != nil {
		v.logger.Warn("Failed to read page count", zap.Error(err))
		return 0
	}
	return count
}

// RetainsTextLayers reports whether the viewer keeps text layers in the DOM
// after rendering.
func (v *Viewer) RetainsTextLayers() bool {
	var retains bool
	expr := fmt.Sprintf(
		`(function(){var a=window[%s];return !!(a&&a.pdfViewer&&a.pdfViewer.textLayerMode>0)})()`,
		jsString(v.cfg.ViewerObject))
	if err := v.eval(expr, &retains); err != nil {
		v.logger.Warn("Failed to read text layer mode", zap.Error(err))
		return false
	}
	return retains
}

// View returns the page view at the given 0-based index.
func (v *Viewer) View(index int) (force.PageView, error) {
	var exists bool
	expr := fmt.Sprintf(`(function(){%s})()`, v.pageExpr(index, "return !!p"))
	if err := v.eval(expr, &exists); err != nil {
		return nil, fmt.Errorf("failed to look up page view %d: %w", index, err)
	}
	if !exists {
		return nil, fmt.Errorf("no page view at index %d", index)
	}
	return &pageView{viewer: v, index: index}, nil
}

// pageExpr builds a statement block with the page view at index bound to p.
// body runs with p possibly undefined; callers guard.
func (v *Viewer) pageExpr(index int, body string) string {
	return fmt.Sprintf(
		`var a=window[%s];var p=a&&a.pdfViewer&&a.pdfViewer._pages?a.pdfViewer._pages[%d]:null;%s`,
		jsString(v.cfg.ViewerObject), index, body)
}

// pageView is the DevTools-backed PageView. State reads are point-in-time
// snapshots; the coordinator tolerates staleness by design of its watchdog.
type pageView struct {
	viewer *Viewer
	index  int
}

func (p *pageView) Index() int {
	return p.index
}

func (p *pageView) RenderingState() types.RenderingState {
	var code int
	expr := fmt.Sprintf(`(function(){%s})()`,
		p.viewer.pageExpr(p.index, "return p?p.renderingState:-1"))
	if err := p.viewer.eval(expr, &code); err != nil {
		p.viewer.logger.Warn("Failed to read rendering state",
			zap.Int("page", p.index+1),
			zap.Error(err))
		return types.StateInitial
	}
	return stateFromCode(code)
}

func (p *pageView) PaintDone() <-chan struct{} {
	var painting bool
	expr := fmt.Sprintf(`(function(){%s})()`,
		p.viewer.pageExpr(p.index, "return !!(p&&p.paintTask)"))
	if err := p.viewer.eval(expr, &painting); err != nil {
		p.viewer.logger.Warn("Failed to read paint task",
			zap.Int("page", p.index+1),
			zap.Error(err))
		return nil
	}
	if !painting {
		return nil
	}
	return p.viewer.paintMarker
}

func (p *pageView) HasTextContent() bool {
	var has bool
	expr := fmt.Sprintf(`(function(){%s})()`,
		p.viewer.pageExpr(p.index,
			"return !!(p&&p.textLayer&&p.textLayer.div&&p.textLayer.div.childElementCount>0)"))
	if err := p.viewer.eval(expr, &has); err != nil {
		p.viewer.logger.Warn("Failed to inspect text layer",
			zap.Int("page", p.index+1),
			zap.Error(err))
		return false
	}
	return has
}

func (p *pageView) EnqueueRender() error {
	var ok bool
	expr := fmt.Sprintf(`(function(){%s})()`,
		p.viewer.pageExpr(p.index,
			"if(!p)return false;var a=window["+jsString(p.viewer.cfg.ViewerObject)+"];a.pdfViewer.renderingQueue.renderView(p);return true"))
	if err := p.viewer.eval(expr, &ok); err != nil {
		return fmt.Errorf("failed to enqueue page %d: %w", p.index+1, err)
	}
	if !ok {
		return fmt.Errorf("page view %d vanished before enqueue", p.index)
	}
	return nil
}

// stateFromCode maps the viewer's renderingState codes onto RenderingState.
// Unknown codes read as initial so the coordinator treats the page as not
// yet rendered.
func stateFromCode(code int) types.RenderingState {
	switch code {
	case 0:
		return types.StateInitial
	case 1:
		return types.StateRunning
	case 2:
		return types.StatePaused
	case 3:
		return types.StateFinished
	default:
		return types.StateInitial
	}
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
