// Package replay feeds recorded WAV files through the pipeline by
// watching a drop-in directory. Dropped files are transcribed exactly
// as if they had been spoken into the microphone.
package replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vrc-chatbox-translator/internal/audio"
	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/service/segment"
)

// Config controls the replay watcher.
type Config struct {
	// Dir is the watched directory, created if missing.
	Dir string

	// SettleDelay waits for the writer to finish the file before
	// reading it. Defaults to 200ms.
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 200 * time.Millisecond
	}
	return c
}

// Injector accepts replayed segments.
type Injector interface {
	Inject(seg segment.Segment)
}

// Watcher ingests WAV files dropped into the watch directory.
type Watcher struct {
	cfg      Config
	injector Injector
	log      zerolog.Logger
}

// New creates a Watcher.
func New(cfg Config, injector Injector) *Watcher {
	return &Watcher{
		cfg:      cfg.withDefaults(),
		injector: injector,
		log:      logging.WithComponent("replay"),
	}
}

// Run watches the directory until the context ends. Files already
// present at startup are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create replay dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create replay watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.log.Info().Str("dir", w.cfg.Dir).Msg("Replay watcher started")

	w.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !isWAV(ev.Name) {
				continue
			}
			w.ingest(ctx, ev.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("Replay watcher error")
		}
	}
}

func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.log.Warn().Err(err).Msg("Failed to scan replay dir")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isWAV(entry.Name()) {
			continue
		}
		w.ingest(ctx, filepath.Join(w.cfg.Dir, entry.Name()))
	}
}

// ingest reads, decodes, and injects one file, then deletes it.
func (w *Watcher) ingest(ctx context.Context, path string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(w.cfg.SettleDelay):
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("Failed to read replay file")
		return
	}
	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("Failed to decode replay file")
		return
	}

	seg := segment.Segment{
		ID:         uuid.NewString(),
		Start:      time.Now(),
		Samples:    samples,
		SampleRate: rate,
		Peak:       audio.Peak(samples),
	}
	w.log.Info().
		Str("path", path).
		Str("segment_id", seg.ID).
		Dur("duration", seg.Duration()).
		Msg("Replaying file")
	w.injector.Inject(seg)

	if err := os.Remove(path); err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("Failed to remove replayed file")
	}
}

func isWAV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}
