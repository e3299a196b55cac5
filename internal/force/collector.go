package force

import "github.com/edgecomet/pageforce/pkg/types"

// outstandingPaints collects the completion signals of every page with an
// active, non-paused paint task. The result is only ever tested for
// emptiness: non-empty means the renderer is making progress on its own and
// no page should be forced yet. Paused paints are excluded: a paused page
// is exactly what the watchdog exists to kick, not a reason to wait.
//
// Callers hold s.mu.
func (s *Session) outstandingPaints() []<-chan struct{} {
	var pending []<-chan struct{}

	s.forEachView(func(view PageView) bool {
		if view.RenderingState() == types.StatePaused {
			return false
		}
		if done := view.PaintDone(); done != nil {
			pending = append(pending, done)
		}
		return false
	})

	return pending
}
