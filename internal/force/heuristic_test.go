package force

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecomet/pageforce/pkg/types"
)

func highlightConfig() Config {
	return Config{
		Highlight: HighlightConfig{
			Enabled:              true,
			MinAverageWordLength: 1,
			MaxAverageWordLength: 10,
		},
	}
}

// completeCycle renders every page and returns the highlight verdict carried
// by the terminal signal.
func completeCycle(t *testing.T, rig *testRig, pages int) *types.HighlightVerdict {
	t.Helper()

	_, started := rig.forcer.Start()
	require.True(t, started)
	for page := 1; page <= pages; page++ {
		rig.renderPage(page)
	}

	terminals := rig.bus.terminalSignals()
	require.Len(t, terminals, 1)
	return terminals[0].Highlight
}

func TestHighlight_EligibleDocument(t *testing.T) {
	// 15 runes, 3 words: (15 - 3) / 3 = 4.
	rig := newTestRig(1, highlightConfig(), fakeText{1: "hello world foo"})

	verdict := completeCycle(t, rig, 1)

	require.NotNil(t, verdict)
	assert.True(t, verdict.Eligible)
	assert.InDelta(t, 4.0, verdict.AverageWordLength, 1e-9)
	assert.Equal(t, 3, verdict.Words)
	assert.Equal(t, 1, verdict.PagesScanned)
	assert.Equal(t, 0, verdict.PagesMissing)
	assert.Empty(t, rig.notifier.notices)
}

func TestHighlight_AverageAtLowerBoundIneligible(t *testing.T) {
	// One 2-rune word: (2 - 1) / 1 = 1, not strictly above the minimum.
	rig := newTestRig(1, highlightConfig(), fakeText{1: "ab"})

	verdict := completeCycle(t, rig, 1)

	require.NotNil(t, verdict)
	assert.False(t, verdict.Eligible)
	assert.InDelta(t, 1.0, verdict.AverageWordLength, 1e-9)
	assert.Len(t, rig.notifier.notices, 1)
}

func TestHighlight_AverageAtUpperBoundIneligible(t *testing.T) {
	// One 11-rune word: (11 - 1) / 1 = 10, not strictly below the maximum.
	rig := newTestRig(1, highlightConfig(), fakeText{1: "abcdefghijk"})

	verdict := completeCycle(t, rig, 1)

	require.NotNil(t, verdict)
	assert.False(t, verdict.Eligible)
	assert.InDelta(t, 10.0, verdict.AverageWordLength, 1e-9)
}

func TestHighlight_NoWordsIneligible(t *testing.T) {
	rig := newTestRig(2, highlightConfig(), fakeText{1: "", 2: "  \n\t "})

	verdict := completeCycle(t, rig, 2)

	require.NotNil(t, verdict)
	assert.False(t, verdict.Eligible)
	assert.Equal(t, 0, verdict.Words)
	assert.Zero(t, verdict.AverageWordLength)
	assert.Len(t, rig.notifier.notices, 1)
}

func TestHighlight_MissingTextContainerCounted(t *testing.T) {
	rig := newTestRig(2, highlightConfig(), fakeText{1: "plain readable text"})

	verdict := completeCycle(t, rig, 2)

	require.NotNil(t, verdict)
	assert.Equal(t, 1, verdict.PagesScanned)
	assert.Equal(t, 1, verdict.PagesMissing)
	// The surviving page still decides eligibility.
	assert.True(t, verdict.Eligible)
}

func TestHighlight_MultibyteRunesCountedOnce(t *testing.T) {
	// Two 4-rune words in Cyrillic: (8 - 2) / 2 = 3.
	rig := newTestRig(1, highlightConfig(), fakeText{1: "сила слов"})

	verdict := completeCycle(t, rig, 1)

	require.NotNil(t, verdict)
	assert.InDelta(t, 3.0, verdict.AverageWordLength, 1e-9)
	assert.True(t, verdict.Eligible)
}

func TestHighlight_DisabledProducesNoVerdict(t *testing.T) {
	rig := newTestRig(1, Config{}, fakeText{1: "hello world foo"})

	verdict := completeCycle(t, rig, 1)

	assert.Nil(t, verdict)
	assert.Empty(t, rig.notifier.notices)
}

func TestHighlight_NoTextSourceProducesNoVerdict(t *testing.T) {
	rig := newTestRig(1, highlightConfig(), nil)

	verdict := completeCycle(t, rig, 1)

	assert.Nil(t, verdict)
}
