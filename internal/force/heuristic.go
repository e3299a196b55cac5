package force

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/edgecomet/pageforce/pkg/types"
)

// evaluateHighlight scans every page's extracted text once rendering is
// complete and gates the highlighting feature on the average word length.
// Scanned or garbled documents produce averages outside the configured
// band.
//
// One length unit per word per page is subtracted from the accumulated
// length to approximately cancel inter-word separator characters. The
// formula is an approximation, kept as-is so existing documents keep their
// historical classification.
//
// Callers hold s.mu.
func (s *Session) evaluateHighlight() *types.HighlightVerdict {
	verdict := &types.HighlightVerdict{}

	var adjustedLength, totalWords int
	for pageNumber := 1; pageNumber <= s.total; pageNumber++ {
		text, err := s.text.PageText(pageNumber)
		if err != nil {
			verdict.PagesMissing++
			s.log.Error("No text container for page",
				zap.Int("page", pageNumber),
				zap.Error(err))
			continue
		}

		verdict.PagesScanned++
		words := strings.Fields(text)
		adjustedLength += utf8.RuneCountInString(text) - len(words)
		totalWords += len(words)
	}

	verdict.Words = totalWords
	if totalWords == 0 {
		// Ineligible, and guards the division below.
		return verdict
	}

	verdict.AverageWordLength = float64(adjustedLength) / float64(totalWords)
	verdict.Eligible = verdict.AverageWordLength > s.cfg.Highlight.MinAverageWordLength &&
		verdict.AverageWordLength < s.cfg.Highlight.MaxAverageWordLength

	return verdict
}
