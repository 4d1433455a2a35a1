package segment

import (
	"time"

	"vrc-chatbox-translator/internal/audio"
)

// NoiseGate decides whether the input currently counts as speech. The
// gate opens when a frame's peak amplitude exceeds the threshold and
// stays open until no loud frame has been seen for the hold time.
//
// Time is audio time, derived from sample counts, so the gate behaves
// the same regardless of capture jitter or test pacing.
type NoiseGate struct {
	threshold float64
	hold      time.Duration
	lastLoud  time.Duration
	open      bool
}

// NewNoiseGate creates a gate with the given amplitude threshold and
// hold time.
func NewNoiseGate(threshold float64, hold time.Duration) *NoiseGate {
	return &NoiseGate{threshold: threshold, hold: hold}
}

// Process feeds one frame ending at the given audio time and reports
// whether the gate is open.
func (g *NoiseGate) Process(samples []float32, at time.Duration) bool {
	return g.Update(audio.Peak(samples), at)
}

// Update is Process for a precomputed peak amplitude.
func (g *NoiseGate) Update(peak float64, at time.Duration) bool {
	if peak > g.threshold {
		g.lastLoud = at
		g.open = true
	} else if g.open && at-g.lastLoud > g.hold {
		g.open = false
	}
	return g.open
}

// Open reports the gate state without consuming a frame.
func (g *NoiseGate) Open() bool {
	return g.open
}
