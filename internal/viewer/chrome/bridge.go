package chrome

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/edgecomet/pageforce/pkg/types"
)

// bindingName is the page-exposed function the bridge script calls to hand
// viewer events back over the DevTools protocol.
const bindingName = "pageforceSignal"

// bridgePayload is the JSON envelope the bridge script sends per event.
type bridgePayload struct {
	Event string `json:"event"`
	Page  int    `json:"page"`
}

// SignalBus receives the viewer events the bridge forwards.
type SignalBus interface {
	Emit(event string, payload interface{})
}

// InstallBridge exposes a binding in the tab, hooks the viewer's event bus
// to it, and forwards document-load and text-layer-rendered events onto the
// signal bus. The hook survives reloads via an on-new-document script.
func (v *Viewer) InstallBridge(bus SignalBus) error {
	chromedp.ListenTarget(v.ctx, func(ev interface{}) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != bindingName {
			return
		}
		v.dispatchBridgeEvent(bus, called.Payload)
	})

	script := v.bridgeScript()
	err := chromedp.Run(v.ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := runtime.AddBinding(bindingName).Do(ctx); err != nil {
				return err
			}
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		// The current document already loaded; hook it directly too.
		chromedp.Evaluate(script, nil),
	)
	if err != nil {
		return fmt.Errorf("failed to install signal bridge: %w", err)
	}

	v.logger.Info("Signal bridge installed", zap.String("binding", bindingName))
	return nil
}

func (v *Viewer) dispatchBridgeEvent(bus SignalBus, raw string) {
	var payload bridgePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		v.logger.Warn("Discarding malformed bridge payload",
			zap.String("payload", raw),
			zap.Error(err))
		return
	}

	switch payload.Event {
	case types.SignalDocumentLoad:
		bus.Emit(types.SignalDocumentLoad, nil)
	case types.SignalTextLayerRendered:
		bus.Emit(types.SignalTextLayerRendered, payload.Page)
	default:
		v.logger.Warn("Discarding unknown bridge event",
			zap.String("event", payload.Event))
	}
}

// bridgeScript subscribes to the viewer's event bus and forwards the two
// events of interest through the binding. It retries until the viewer
// application appears, since the script also runs on fresh documents where
// the viewer bootstraps asynchronously.
func (v *Viewer) bridgeScript() string {
	return fmt.Sprintf(`(function () {
	if (window.__pageforceBridgeInstalled) return;
	window.__pageforceBridgeInstalled = true;

	function send(event, pageNumber) {
		window[%[1]s](JSON.stringify({event: event, page: pageNumber || 0}));
	}

	function hook() {
		var app = window[%[2]s];
		if (!app || !app.eventBus) {
			setTimeout(hook, 50);
			return;
		}
		app.eventBus.on("documentloaded", function () {
			send(%[3]s, 0);
		});
		app.eventBus.on("textlayerrendered", function (e) {
			send(%[4]s, e.pageNumber);
		});
	}

	hook();
})();`,
		jsString(bindingName),
		jsString(v.cfg.ViewerObject),
		jsString(types.SignalDocumentLoad),
		jsString(types.SignalTextLayerRendered),
	)
}
