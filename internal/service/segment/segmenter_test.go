package segment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vrc-chatbox-translator/internal/audio"
)

// makeFrame builds a frame of n samples at constant amplitude. At 16kHz
// a frame of 800 samples is 50ms.
func makeFrame(n int, amp float32) audio.Frame {
	f := make(audio.Frame, n)
	for i := range f {
		f[i] = amp
	}
	return f
}

func repeatFrames(count, n int, amp float32) []audio.Frame {
	frames := make([]audio.Frame, count)
	for i := range frames {
		frames[i] = makeFrame(n, amp)
	}
	return frames
}

// runSegmenter drives the segmenter over the frames synchronously. The
// output queue never blocks the run loop, so draining afterwards is
// safe.
func runSegmenter(t *testing.T, cfg Config, frames []audio.Frame) []Segment {
	t.Helper()
	s := New(cfg)
	in := make(chan audio.Frame, len(frames))
	for _, f := range frames {
		in <- f
	}
	close(in)

	s.Run(context.Background(), in)

	var out []Segment
	for seg := range s.Segments() {
		out = append(out, seg)
	}
	return out
}

func testConfig() Config {
	return Config{
		SampleRate:       16000,
		GateThreshold:    0.3,
		GateHold:         200 * time.Millisecond,
		SilenceThreshold: 100 * time.Millisecond,
		MinDuration:      300 * time.Millisecond,
		QueueSize:        4,
	}
}

func TestSegmenter_SilenceBoundary(t *testing.T) {
	cfg := testConfig()
	var starts, discards int
	cfg.OnSpeechStart = func() { starts++ }
	cfg.OnDiscard = func() { discards++ }

	// 2.0s of speech followed by silence. The gate hold keeps 200ms of
	// the trailing quiet inside the utterance, then 100ms of closed
	// gate ends it.
	frames := append(repeatFrames(40, 800, 0.5), repeatFrames(10, 800, 0.05)...)
	segments := runSegmenter(t, cfg, frames)

	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if len(seg.Samples) != 35200 {
		t.Errorf("expected 35200 samples (2.2s), got %d", len(seg.Samples))
	}
	if dur := seg.Duration(); dur < 2*time.Second || dur > 2200*time.Millisecond {
		t.Errorf("expected duration within [2s, 2.2s], got %v", dur)
	}
	if seg.Peak != 0.5 {
		t.Errorf("expected peak 0.5, got %f", seg.Peak)
	}
	if seg.ID == "" {
		t.Error("expected non-empty segment ID")
	}
	if seg.Start.IsZero() {
		t.Error("expected non-zero start time")
	}
	if starts != 1 {
		t.Errorf("expected 1 speech start, got %d", starts)
	}
	if discards != 0 {
		t.Errorf("expected no discards, got %d", discards)
	}
}

func TestSegmenter_ShortPauseStaysInUtterance(t *testing.T) {
	cfg := testConfig()
	cfg.SilenceThreshold = 300 * time.Millisecond

	// Speech, a 300ms pause (200ms absorbed by the hold, 100ms of
	// closed gate), then more speech. The pause never reaches the
	// silence threshold, so everything is one utterance.
	var frames []audio.Frame
	frames = append(frames, repeatFrames(10, 800, 0.5)...)
	frames = append(frames, repeatFrames(6, 800, 0.05)...)
	frames = append(frames, repeatFrames(10, 800, 0.5)...)
	frames = append(frames, repeatFrames(12, 800, 0.05)...)

	segments := runSegmenter(t, cfg, frames)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if got := len(segments[0].Samples); got != 24000 {
		t.Errorf("expected 24000 samples (1.5s), got %d", got)
	}
}

func TestSegmenter_DiscardsShortUtterance(t *testing.T) {
	cfg := testConfig()
	cfg.GateHold = 0
	var starts, discards int
	cfg.OnSpeechStart = func() { starts++ }
	cfg.OnDiscard = func() { discards++ }

	// 100ms of speech is below the 300ms minimum.
	frames := append(repeatFrames(2, 800, 0.5), repeatFrames(4, 800, 0.05)...)
	segments := runSegmenter(t, cfg, frames)

	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %d", len(segments))
	}
	if starts != 1 {
		t.Errorf("expected 1 speech start, got %d", starts)
	}
	if discards != 1 {
		t.Errorf("expected 1 discard, got %d", discards)
	}
}

func TestSegmenter_QueueFullDropsOldest(t *testing.T) {
	cfg := testConfig()
	cfg.GateHold = 0
	cfg.MinDuration = 100 * time.Millisecond
	cfg.QueueSize = 1

	var frames []audio.Frame
	for _, loud := range []int{4, 6, 8} {
		frames = append(frames, repeatFrames(loud, 800, 0.5)...)
		frames = append(frames, repeatFrames(2, 800, 0.05)...)
	}

	segments := runSegmenter(t, cfg, frames)
	if len(segments) != 1 {
		t.Fatalf("expected 1 surviving segment, got %d", len(segments))
	}
	if got := len(segments[0].Samples); got != 6400 {
		t.Errorf("expected newest segment (6400 samples) to survive, got %d", got)
	}
}

func TestSegmenter_FlushOnShutdown(t *testing.T) {
	cfg := testConfig()

	segments := runSegmenter(t, cfg, repeatFrames(20, 800, 0.5))
	if len(segments) != 1 {
		t.Fatalf("expected flushed segment, got %d", len(segments))
	}
	if got := len(segments[0].Samples); got != 16000 {
		t.Errorf("expected 16000 samples, got %d", got)
	}
}

func TestSegmenter_MaxDurationForcesBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.GateHold = 0
	cfg.MinDuration = 100 * time.Millisecond
	cfg.MaxDuration = 500 * time.Millisecond

	segments := runSegmenter(t, cfg, repeatFrames(20, 800, 0.5))
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if got := len(seg.Samples); got != 8000 {
			t.Errorf("segment %d: expected 8000 samples, got %d", i, got)
		}
	}
}

func TestSegmenter_PureSilenceEmitsNothing(t *testing.T) {
	cfg := testConfig()
	var starts int
	cfg.OnSpeechStart = func() { starts++ }

	segments := runSegmenter(t, cfg, repeatFrames(20, 800, 0.05))
	if len(segments) != 0 {
		t.Errorf("expected no segments, got %d", len(segments))
	}
	if starts != 0 {
		t.Errorf("expected no speech starts, got %d", starts)
	}
}

func TestSegmenter_Inject(t *testing.T) {
	s := New(testConfig())
	in := make(chan audio.Frame)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(context.Background(), in)
	}()

	s.Inject(Segment{
		ID:         "replay-1",
		Samples:    make([]float32, 16000),
		SampleRate: 16000,
	})

	select {
	case seg := <-s.Segments():
		if seg.ID != "replay-1" {
			t.Errorf("expected injected segment, got %q", seg.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for injected segment")
	}

	close(in)
	<-done
}

func TestSegmenter_InjectAfterShutdown(t *testing.T) {
	s := New(testConfig())
	in := make(chan audio.Frame)
	close(in)
	s.Run(context.Background(), in)

	// Must not panic on the closed queue.
	s.Inject(Segment{ID: "late", Samples: make([]float32, 16000), SampleRate: 16000})

	count := 0
	for range s.Segments() {
		count++
	}
	if count != 0 {
		t.Errorf("expected no segments after shutdown, got %d", count)
	}
}

func TestSegmenter_DebugDump(t *testing.T) {
	cfg := testConfig()
	cfg.GateHold = 0
	cfg.MinDuration = 100 * time.Millisecond
	cfg.DebugDir = t.TempDir()

	frames := append(repeatFrames(10, 800, 0.5), repeatFrames(2, 800, 0.05)...)
	segments := runSegmenter(t, cfg, frames)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}

	entries, err := os.ReadDir(cfg.DebugDir)
	if err != nil {
		t.Fatalf("failed to read debug dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 debug file, got %d", len(entries))
	}
	name := entries[0].Name()
	if name != segments[0].ID+".wav" {
		t.Errorf("expected dump named after segment ID, got %q", name)
	}
	if strings.HasSuffix(name, ".tmp") {
		t.Errorf("expected finished dump, got temp file %q", name)
	}

	data, err := os.ReadFile(filepath.Join(cfg.DebugDir, name))
	if err != nil {
		t.Fatalf("failed to read dump: %v", err)
	}
	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("failed to decode dump: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected 16000Hz dump, got %d", rate)
	}
	if len(samples) != len(segments[0].Samples) {
		t.Errorf("expected %d samples in dump, got %d", len(segments[0].Samples), len(samples))
	}
}
