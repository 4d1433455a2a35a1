// Package stt defines the interface for transcription adapters.
package stt

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyTranscript indicates the provider returned no usable text for
// the segment.
var ErrEmptyTranscript = errors.New("empty transcript")

// ErrQuota indicates the provider rejected the request over quota.
var ErrQuota = errors.New("provider quota exceeded")

// Request carries one finished speech segment to the provider.
type Request struct {
	// SegmentID identifies the source segment in logs and events.
	SegmentID string

	// WAV is the segment audio as a 16-bit PCM WAV payload.
	WAV []byte

	// Duration is the playback length of the audio.
	Duration time.Duration

	// Model names the chat model used for translation.
	Model string

	// TargetLanguage enables translation when non-empty.
	TargetLanguage string
}

// Result is the provider's answer for one segment.
type Result struct {
	// Text is the raw transcript.
	Text string

	// Translated is the transcript in the target language, empty when
	// translation was not requested.
	Translated string

	// PromptTokens and CompletionTokens report chat usage for cost
	// accounting. Zero when translation was not requested.
	PromptTokens     int
	CompletionTokens int
}

// Adapter defines the interface for transcription providers (OpenAI, mock, etc.).
type Adapter interface {
	// Transcribe converts segment audio to text, translating when the
	// request names a target language.
	Transcribe(ctx context.Context, req Request) (Result, error)

	// Close releases provider resources.
	Close() error
}
