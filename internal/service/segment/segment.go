// Package segment cuts the capture stream into discrete utterances
// using a noise gate and a silence boundary.
package segment

import (
	"time"

	"vrc-chatbox-translator/internal/audio"
)

// Segment is one contiguous stretch of speech cut from the capture
// stream.
type Segment struct {
	// ID uniquely identifies the segment across logs, events, and
	// debug dumps.
	ID string

	// Start is the wall-clock time speech was first detected.
	Start time.Time

	// Samples holds the mono audio, including any short pauses that
	// fell inside the utterance.
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Peak is the loudest absolute amplitude observed.
	Peak float64
}

// Duration returns the playback length of the segment.
func (s Segment) Duration() time.Duration {
	return audio.Duration(len(s.Samples), s.SampleRate)
}
