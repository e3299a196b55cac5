// Package types holds the small value types shared between the force
// coordinator, the viewer adapters and the harness.
package types

import (
	"fmt"
	"time"
)

// RenderingState mirrors the external viewer's per-page rendering lifecycle.
// The force coordinator only ever branches on StatePaused; every other value
// is treated as "not paused".
type RenderingState int

const (
	StateInitial RenderingState = iota
	StateQueued
	StateRunning
	StatePaused
	StateFinished
)

func (s RenderingState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("renderingstate(%d)", int(s))
	}
}

// Signal names on the host event bus.
const (
	// SignalDocumentLoad is emitted by the host once a document is loaded.
	SignalDocumentLoad = "documentload"

	// SignalTextLayerRendered is emitted by the host once per rendered page.
	// Payload: int, the 1-based page number.
	SignalTextLayerRendered = "textlayerrendered"

	// SignalDocumentRendered is emitted by the force coordinator exactly once
	// per cycle that reaches its terminal transition. Payload:
	// *DocumentRendered.
	SignalDocumentRendered = "documentrendered"
)

// HighlightVerdict is the outcome of the text-quality scan that gates the
// highlighting feature.
type HighlightVerdict struct {
	Eligible          bool
	AverageWordLength float64
	Words             int
	PagesScanned      int
	PagesMissing      int
}

// DocumentRendered is the payload of SignalDocumentRendered.
type DocumentRendered struct {
	CycleID  string
	Pages    int
	Duration time.Duration

	// Aborted is set when the cycle was torn down defensively (for example
	// the page collection changed size mid-cycle) instead of completing.
	Aborted bool

	// Highlight is nil when the eligibility scan did not run.
	Highlight *HighlightVerdict
}

// Duration wraps time.Duration with YAML string parsing ("250ms", "3s", ...).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
