// Package cost tracks the estimated money spent on provider calls and
// persists a running total across restarts.
package cost

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/observability/metrics"
)

// whisperPerMinute is the Whisper transcription price in USD.
const whisperPerMinute = 0.006

// modelPrice holds chat completion prices in USD per million tokens.
type modelPrice struct {
	input  float64
	output float64
}

// chatPrices maps chat models to their token prices. Unknown models
// cost zero rather than guessing.
var chatPrices = map[string]modelPrice{
	"gpt-4o":                 {input: 5.00, output: 15.00},
	"gpt-4o-2024-08-06":      {input: 2.50, output: 10.00},
	"gpt-4o-2024-05-13":      {input: 5.00, output: 15.00},
	"gpt-4o-mini":            {input: 0.150, output: 0.600},
	"gpt-4o-mini-2024-07-18": {input: 0.150, output: 0.600},
}

// Estimator accumulates per-call costs into a total persisted in the
// ledger file.
type Estimator struct {
	mu    sync.Mutex
	path  string
	total float64
	log   zerolog.Logger
}

// NewEstimator creates an estimator backed by the ledger at path. A
// missing ledger starts the total at zero, an empty path disables
// persistence.
func NewEstimator(path string) (*Estimator, error) {
	e := &Estimator{
		path: path,
		log:  logging.WithComponent("cost"),
	}
	if path == "" {
		return e, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cost ledger: %w", err)
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return nil, fmt.Errorf("parse cost ledger %s: %w", path, err)
	}
	e.total = total
	return e, nil
}

// RecordCall adds the cost of one transcription plus optional
// translation and returns it. Token counts of zero contribute nothing.
func (e *Estimator) RecordCall(audioDuration time.Duration, model string, promptTokens, completionTokens int) float64 {
	minutes := audioDuration.Seconds() / 60.0
	call := minutes * whisperPerMinute

	price := chatPrices[model]
	call += float64(promptTokens) / 1_000_000.0 * price.input
	call += float64(completionTokens) / 1_000_000.0 * price.output

	e.mu.Lock()
	e.total += call
	total := e.total
	e.save()
	e.mu.Unlock()

	metrics.DefaultMetrics.RecordCost(call)
	e.log.Debug().
		Float64("call_usd", call).
		Float64("total_usd", total).
		Msg("Recorded provider cost")
	return call
}

// Total returns the accumulated cost.
func (e *Estimator) Total() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// save persists the total. Failures only log, cost tracking is best
// effort.
func (e *Estimator) save() {
	if e.path == "" {
		return
	}
	tmp := e.path + ".tmp"
	content := strconv.FormatFloat(e.total, 'f', -1, 64)
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		e.log.Warn().Err(err).Str("path", e.path).Msg("Failed to write cost ledger")
		return
	}
	if err := os.Rename(tmp, e.path); err != nil {
		e.log.Warn().Err(err).Str("path", e.path).Msg("Failed to move cost ledger into place")
	}
}
