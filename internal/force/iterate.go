package force

import "go.uber.org/zap"

// forEachView visits the page views from the last page to the first,
// stopping early when visit returns true; the return value reports whether
// any visit stopped the scan. A view the collection fails to produce is
// logged and skipped; one bad view must not abort the whole scan.
//
// Reverse order: the user is most likely looking at low-numbered pages, so
// forcing from the far end stays out of the renderer's way.
//
// Callers hold s.mu.
func (s *Session) forEachView(visit func(PageView) bool) bool {
	if s.viewer.PageCount() != s.total {
		// The document was swapped or resized under us; guessing which
		// pages survived is worse than starting over on the next load.
		s.abortLocked("page collection changed size mid-cycle")
		return false
	}

	for i := s.total - 1; i >= 0; i-- {
		view, err := s.viewer.View(i)
		if err != nil {
			s.metrics.ViewFault()
			s.log.Warn("Skipping unusable page view",
				zap.Int("page", i+1),
				zap.Error(err))
			continue
		}

		if visit(view) {
			return true
		}
	}

	return false
}
