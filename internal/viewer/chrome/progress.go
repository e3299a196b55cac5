package chrome

import (
	"fmt"

	"go.uber.org/zap"
)

// SetPercent updates the progress dialog. Best-effort: a missing dialog
// element is logged and swallowed, rendering must not fail on UI problems.
func (v *Viewer) SetPercent(pct int) {
	expr := fmt.Sprintf(
		`(function(){var d=document.getElementById(%s);if(!d)return false;`+
			`var b=d.querySelector("progress");if(b)b.value=%d;`+
			`var t=d.querySelector(".percent");if(t)t.textContent=%d+"%%";return true})()`,
		jsString(v.cfg.ProgressDialogID), pct, pct)
	var ok bool
	if err := v.eval(expr, &ok); err != nil || !ok {
		v.logger.Debug("Progress dialog update skipped",
			zap.Int("percent", pct),
			zap.Error(err))
	}
}

// Show opens the progress dialog.
func (v *Viewer) Show() {
	v.toggleDialog(true)
}

// Hide closes the progress dialog.
func (v *Viewer) Hide() {
	v.toggleDialog(false)
}

func (v *Viewer) toggleDialog(open bool) {
	action := "close"
	if open {
		action = "showModal"
	}
	expr := fmt.Sprintf(
		`(function(){var d=document.getElementById(%s);if(!d||typeof d.%s!=="function")return false;`+
			`try{d.%s()}catch(e){return false};return true})()`,
		jsString(v.cfg.ProgressDialogID), action, action)
	var ok bool
	if err := v.eval(expr, &ok); err != nil || !ok {
		v.logger.Debug("Progress dialog toggle skipped",
			zap.String("action", action),
			zap.Error(err))
	}
}

// Notify raises a blocking user notice in the page.
func (v *Viewer) Notify(message string) {
	expr := fmt.Sprintf(`(function(){window.alert(%s);return true})()`, jsString(message))
	var ok bool
	if err := v.eval(expr, &ok); err != nil {
		v.logger.Warn("Failed to raise user notice",
			zap.String("message", message),
			zap.Error(err))
	}
}
