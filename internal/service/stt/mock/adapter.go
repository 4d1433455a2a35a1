// Package mock provides a transcription adapter for running without
// OpenAI credentials. It cycles through canned transcripts and, when a
// target language is requested, canned translations.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vrc-chatbox-translator/internal/service/stt"
)

// simulatedLatency approximates a provider round trip.
const simulatedLatency = 50 * time.Millisecond

// Utterance is one canned transcription result.
type Utterance struct {
	Text       string // Raw transcript
	Translated string // Translation returned when a target language is set
}

// DefaultUtterances provides sample results for simulation.
var DefaultUtterances = []Utterance{
	{
		Text:       "Hello everyone, how is it going",
		Translated: "みなさんこんにちは、調子はどうですか",
	},
	{
		Text:       "This world looks amazing",
		Translated: "このワールドは素晴らしいですね",
	},
	{
		Text:       "Sorry, my mic was muted",
		Translated: "すみません、ミュートにしていました",
	},
	{
		Text:       "Let's check out the next world",
		Translated: "次のワールドに行ってみましょう",
	},
	{
		Text:       "Thanks for showing me around",
		Translated: "案内してくれてありがとう",
	},
}

// Adapter implements stt.Adapter with mock responses. Each Transcribe
// call returns the next utterance in the cycle.
type Adapter struct {
	mu         sync.Mutex
	utterances []Utterance
	next       int
	closed     bool
}

// New creates a new mock adapter.
func New() *Adapter {
	return &Adapter{utterances: DefaultUtterances}
}

// Transcribe returns the next canned utterance. Token usage is estimated
// from text length the same way the cost fallback does.
func (a *Adapter) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	select {
	case <-ctx.Done():
		return stt.Result{}, ctx.Err()
	case <-time.After(simulatedLatency):
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return stt.Result{}, fmt.Errorf("mock adapter closed")
	}

	u := a.utterances[a.next%len(a.utterances)]
	a.next++

	result := stt.Result{Text: u.Text}
	if req.TargetLanguage != "" {
		result.Translated = u.Translated
		result.PromptTokens = len(u.Text) / 4
		result.CompletionTokens = len(u.Translated) / 4
	}
	return result, nil
}

// Close ends the mock session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
