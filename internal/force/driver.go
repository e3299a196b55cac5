package force

import "go.uber.org/zap"

// renderNextPage forces the first page, scanning backwards, whose text
// layer has not materialized. First match wins: a single page is forced at
// a time. When every page has content there is nothing left to force and
// the forced-view bookkeeping is cleared.
//
// Callers hold s.mu.
func (s *Session) renderNextPage() bool {
	forced := false

	s.forEachView(func(view PageView) bool {
		if view.HasTextContent() {
			return false
		}

		s.forced = view
		forced = true

		s.log.Debug("Forcing page render", zap.Int("page", view.Index()+1))
		if err := view.EnqueueRender(); err != nil {
			// The watchdog retries paused pages; an enqueue failure here
			// surfaces on the next tick or the next rendered event.
			s.log.Warn("Failed to enqueue page for rendering",
				zap.Int("page", view.Index()+1),
				zap.Error(err))
		}

		return true
	})

	if !forced {
		s.forced = nil
	}

	return forced
}
