// Package dispatch drains finished segments through rate limiting,
// transcription, and translation, then hands the display text to the
// chatbox.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vrc-chatbox-translator/internal/audio"
	"vrc-chatbox-translator/internal/models"
	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/observability/metrics"
	"vrc-chatbox-translator/internal/service/segment"
	"vrc-chatbox-translator/internal/service/stt"
)

// Sink receives display-ready text.
type Sink interface {
	Show(text string)
}

// Publisher emits transcript events.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Estimator records the money spent on one provider call and returns
// the estimated cost.
type Estimator interface {
	RecordCall(audioDuration time.Duration, model string, promptTokens, completionTokens int) float64
}

// Config controls dispatching.
type Config struct {
	// Provider labels metrics, "openai" or "mock".
	Provider string

	// Model names the chat model used for translation.
	Model string

	// TargetLanguage enables translation when non-empty.
	TargetLanguage string

	// IncludeOriginal appends the raw transcript under the translation.
	IncludeOriginal bool

	// RequestsPerMinute caps provider calls. Defaults to 20.
	RequestsPerMinute int

	// RequestTimeout bounds one provider round trip. Defaults to 30s.
	RequestTimeout time.Duration

	// OnDrop fires when a segment is abandoned, so state tied to the
	// segment (the typing indicator) can be released.
	OnDrop func()
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 20
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// Dispatcher owns the segment-to-text path. Failed segments are dropped
// without retry, the speech is stale by the time a retry would land.
type Dispatcher struct {
	cfg       Config
	adapter   stt.Adapter
	sink      Sink
	publisher Publisher
	estimator Estimator
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// New creates a Dispatcher.
func New(cfg Config, adapter stt.Adapter, sink Sink, publisher Publisher, estimator Estimator) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:       cfg,
		adapter:   adapter,
		sink:      sink,
		publisher: publisher,
		estimator: estimator,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute),
		log:       logging.WithComponent("dispatcher"),
	}
}

// Run consumes segments until the channel closes or the context ends.
func (d *Dispatcher) Run(ctx context.Context, segments <-chan segment.Segment) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-segments:
			if !ok {
				return
			}
			d.dispatch(ctx, seg)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, seg segment.Segment) {
	logger := logging.WithSegment("dispatcher", seg.ID)

	waitStart := time.Now()
	if err := d.limiter.Wait(ctx); err != nil {
		logger.Debug().Err(err).Msg("Rate limit wait aborted")
		d.drop()
		return
	}
	metrics.DefaultMetrics.RecordRateLimitWait(time.Since(waitStart).Seconds())

	wavData, err := audio.EncodeWAV(seg.Samples, seg.SampleRate)
	if err != nil {
		metrics.DefaultMetrics.RecordTranscriptionError(d.cfg.Provider, "encode")
		logger.Error().Err(err).Msg("Failed to encode segment audio")
		d.drop()
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	result, err := d.adapter.Transcribe(reqCtx, stt.Request{
		SegmentID:      seg.ID,
		WAV:            wavData,
		Duration:       seg.Duration(),
		Model:          d.cfg.Model,
		TargetLanguage: d.cfg.TargetLanguage,
	})
	if err != nil {
		metrics.DefaultMetrics.RecordTranscriptionError(d.cfg.Provider, errorType(err))
		logger.Warn().Err(err).Msg("Dropping segment after transcription failure")
		d.drop()
		return
	}
	latency := time.Since(start)
	metrics.DefaultMetrics.RecordDispatch(d.cfg.Provider, latency.Seconds())

	var cost float64
	if d.estimator != nil {
		cost = d.estimator.RecordCall(seg.Duration(), d.cfg.Model, result.PromptTokens, result.CompletionTokens)
	}

	if d.publisher != nil {
		event := models.Transcript{
			EventType:      models.EventTypeTranscript,
			SegmentID:      seg.ID,
			Timestamp:      time.Now().UnixMilli(),
			Text:           result.Text,
			Translated:     result.Translated,
			TargetLanguage: d.cfg.TargetLanguage,
			DurationMs:     seg.Duration().Milliseconds(),
			CostUSD:        cost,
		}
		if err := d.publisher.Publish(ctx, seg.ID, event); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish transcript event")
		}
	}

	logger.Info().
		Dur("latency", latency).
		Str("text", result.Text).
		Str("translated", result.Translated).
		Float64("cost_usd", cost).
		Msg("Segment transcribed")

	d.sink.Show(d.displayText(result))
}

// displayText composes what the chatbox shows.
func (d *Dispatcher) displayText(result stt.Result) string {
	if d.cfg.TargetLanguage == "" || result.Translated == "" {
		return result.Text
	}
	if d.cfg.IncludeOriginal {
		return result.Translated + "\n" + result.Text
	}
	return result.Translated
}

func (d *Dispatcher) drop() {
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop()
	}
}

// errorType buckets transcription failures for metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, stt.ErrQuota):
		return "quota"
	case errors.Is(err, stt.ErrEmptyTranscript):
		return "empty"
	default:
		return "remote"
	}
}
