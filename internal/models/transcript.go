// Package models defines the data structures for transcript events.
package models

// EventTypeTranscript is the event type for completed chatbox transcripts.
const EventTypeTranscript = "chatbox.transcript"

// Transcript represents one transcribed, optionally translated, utterance.
type Transcript struct {
	EventType      string  `json:"eventType"`
	SegmentID      string  `json:"segmentId"`
	Timestamp      int64   `json:"timestamp"`
	Text           string  `json:"text"`
	Translated     string  `json:"translated,omitempty"`
	TargetLanguage string  `json:"targetLanguage,omitempty"`
	DurationMs     int64   `json:"durationMs"`
	CostUSD        float64 `json:"costUsd"`
}
