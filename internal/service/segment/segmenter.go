package segment

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vrc-chatbox-translator/internal/audio"
	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/observability/metrics"
)

// Config controls segmentation.
type Config struct {
	// SampleRate of the incoming frames, in Hz.
	SampleRate int

	// GateThreshold is the peak amplitude above which a frame counts
	// as speech.
	GateThreshold float64

	// GateHold keeps the gate open after the last loud frame so word
	// gaps do not flap it.
	GateHold time.Duration

	// SilenceThreshold is how much closed-gate audio ends the
	// utterance.
	SilenceThreshold time.Duration

	// MinDuration discards utterances too short to transcribe.
	MinDuration time.Duration

	// MaxDuration forces a boundary on runaway utterances. Defaults
	// to 30s.
	MaxDuration time.Duration

	// QueueSize bounds the outgoing segment channel.
	QueueSize int

	// DebugDir, when set, receives a WAV dump of every segment.
	DebugDir string

	// OnSpeechStart fires when a new utterance begins.
	OnSpeechStart func()

	// OnDiscard fires when a pending utterance is thrown away,
	// so downstream state tied to OnSpeechStart can be released.
	OnDiscard func()
}

func (c Config) withDefaults() Config {
	if c.MaxDuration <= 0 {
		c.MaxDuration = 30 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 8
	}
	return c
}

// Segmenter consumes capture frames and emits finished segments on a
// bounded channel. When the channel is full the oldest waiting segment
// is dropped, stale speech is worth less than fresh speech.
type Segmenter struct {
	cfg  Config
	gate *NoiseGate
	out  chan Segment
	log  zerolog.Logger

	// audio-time clock, advanced one frame at a time
	clock time.Duration

	current []float32
	tail    []float32
	silence time.Duration
	start   time.Time
	peak    float64

	injectMu sync.Mutex
	closed   bool
}

// New creates a Segmenter.
func New(cfg Config) *Segmenter {
	cfg = cfg.withDefaults()
	return &Segmenter{
		cfg:  cfg,
		gate: NewNoiseGate(cfg.GateThreshold, cfg.GateHold),
		out:  make(chan Segment, cfg.QueueSize),
		log:  logging.WithComponent("segmenter"),
	}
}

// Segments returns the channel of finished segments. It is closed when
// Run returns.
func (s *Segmenter) Segments() <-chan Segment {
	return s.out
}

// Run consumes frames until the channel closes or the context ends,
// then flushes any pending utterance.
func (s *Segmenter) Run(ctx context.Context, frames <-chan audio.Frame) {
	defer s.closeOut()

	if s.cfg.DebugDir != "" {
		if err := os.MkdirAll(s.cfg.DebugDir, 0o755); err != nil {
			s.log.Warn().Err(err).Str("dir", s.cfg.DebugDir).Msg("Cannot create debug audio dir, dumps disabled")
			s.cfg.DebugDir = ""
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case frame, ok := <-frames:
			if !ok {
				s.flush()
				return
			}
			s.process(frame)
		}
	}
}

// Inject feeds a prebuilt segment into the output queue, bypassing the
// gate. Used by the replay watcher.
func (s *Segmenter) Inject(seg Segment) {
	s.injectMu.Lock()
	defer s.injectMu.Unlock()
	if s.closed {
		s.log.Debug().Str("segment_id", seg.ID).Msg("Segmenter closed, dropping injected segment")
		return
	}
	metrics.DefaultMetrics.RecordSegmentCreated(seg.Duration().Seconds())
	s.log.Info().
		Str("segment_id", seg.ID).
		Dur("duration", seg.Duration()).
		Msg("Injected segment")
	s.emit(seg)
}

func (s *Segmenter) process(frame audio.Frame) {
	frameDur := audio.Duration(len(frame), s.cfg.SampleRate)
	s.clock += frameDur

	peak := audio.Peak(frame)
	open := s.gate.Update(peak, s.clock)

	switch {
	case open:
		if len(s.current) == 0 {
			s.start = time.Now()
			s.peak = 0
			s.log.Debug().Msg("Speech started")
			if s.cfg.OnSpeechStart != nil {
				s.cfg.OnSpeechStart()
			}
		}
		if len(s.tail) > 0 {
			// The pause was shorter than the silence threshold,
			// keep it inside the utterance.
			s.current = append(s.current, s.tail...)
			s.tail = s.tail[:0]
			s.silence = 0
		}
		s.current = append(s.current, frame...)
		if peak > s.peak {
			s.peak = peak
		}
		if audio.Duration(len(s.current), s.cfg.SampleRate) >= s.cfg.MaxDuration {
			s.log.Warn().Dur("max", s.cfg.MaxDuration).Msg("Utterance hit max duration, forcing boundary")
			s.closeUtterance()
		}
	case len(s.current) > 0:
		// Gate closed with a pending utterance. Buffer the quiet
		// audio until the silence threshold decides the boundary.
		s.tail = append(s.tail, frame...)
		s.silence += frameDur
		if s.silence >= s.cfg.SilenceThreshold {
			s.tail = s.tail[:0]
			s.silence = 0
			s.closeUtterance()
		}
	default:
		// silence between utterances
	}
}

// closeUtterance finalizes the pending utterance, discarding it when
// too short to be worth a transcription call.
func (s *Segmenter) closeUtterance() {
	if len(s.current) == 0 {
		return
	}
	samples := make([]float32, len(s.current))
	copy(samples, s.current)
	s.current = s.current[:0]

	seg := Segment{
		ID:         uuid.NewString(),
		Start:      s.start,
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Peak:       s.peak,
	}

	dur := seg.Duration()
	if dur < s.cfg.MinDuration {
		metrics.DefaultMetrics.RecordSegmentDropped("too_short")
		s.log.Debug().
			Str("segment_id", seg.ID).
			Dur("duration", dur).
			Msg("Discarding segment below min transcription duration")
		if s.cfg.OnDiscard != nil {
			s.cfg.OnDiscard()
		}
		return
	}

	metrics.DefaultMetrics.RecordSegmentCreated(dur.Seconds())
	s.log.Info().
		Str("segment_id", seg.ID).
		Dur("duration", dur).
		Float64("peak", seg.Peak).
		Msg("Segment closed")

	if s.cfg.DebugDir != "" {
		s.dump(seg)
	}
	s.emit(seg)
}

// emit enqueues a segment, dropping the oldest waiting one when full.
func (s *Segmenter) emit(seg Segment) {
	select {
	case s.out <- seg:
		return
	default:
	}

	select {
	case dropped := <-s.out:
		metrics.DefaultMetrics.RecordSegmentDropped("queue_full")
		s.log.Warn().
			Str("segment_id", dropped.ID).
			Msg("Segment queue full, dropping oldest segment")
	default:
	}

	select {
	case s.out <- seg:
	default:
		metrics.DefaultMetrics.RecordSegmentDropped("queue_full")
		s.log.Warn().Str("segment_id", seg.ID).Msg("Segment queue still full, dropping segment")
	}
}

// flush closes out a pending utterance at shutdown. Trailing quiet
// audio is not included.
func (s *Segmenter) flush() {
	s.tail = s.tail[:0]
	s.silence = 0
	s.closeUtterance()
}

func (s *Segmenter) closeOut() {
	s.injectMu.Lock()
	defer s.injectMu.Unlock()
	s.closed = true
	close(s.out)
}

// dump writes the segment audio to the debug dir. Failures only log,
// dumps are best effort.
func (s *Segmenter) dump(seg Segment) {
	data, err := audio.EncodeWAV(seg.Samples, seg.SampleRate)
	if err != nil {
		s.log.Warn().Err(err).Str("segment_id", seg.ID).Msg("Failed to encode debug WAV")
		return
	}
	path := filepath.Join(s.cfg.DebugDir, seg.ID+".wav")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Failed to write debug WAV")
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Failed to move debug WAV into place")
	}
}
