// Package app wires the pipeline together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vrc-chatbox-translator/internal/audio"
	"vrc-chatbox-translator/internal/chatbox"
	"vrc-chatbox-translator/internal/config"
	"vrc-chatbox-translator/internal/cost"
	"vrc-chatbox-translator/internal/events"
	"vrc-chatbox-translator/internal/observability"
	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/osc"
	"vrc-chatbox-translator/internal/replay"
	"vrc-chatbox-translator/internal/service/dispatch"
	"vrc-chatbox-translator/internal/service/segment"
	"vrc-chatbox-translator/internal/service/stt"
	"vrc-chatbox-translator/internal/service/stt/mock"
	openaistt "vrc-chatbox-translator/internal/service/stt/openai"
)

// Application holds the assembled pipeline.
type Application struct {
	StartupTime time.Time

	cfg *config.Config
	log zerolog.Logger

	capture       *audio.Capture
	segmenter     *segment.Segmenter
	dispatcher    *dispatch.Dispatcher
	emitter       *chatbox.Emitter
	typing        *chatbox.Typing
	listener      *osc.Listener
	adapter       stt.Adapter
	publisher     *events.Publisher
	estimator     *cost.Estimator
	obs           *observability.Server
	replayWatcher *replay.Watcher
}

// New constructs the application from validated configuration.
func New(cfg *config.Config) (*Application, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Observability.LogLevel != "" {
		logCfg.Level = cfg.Observability.LogLevel
	}
	if cfg.Observability.LogFormat != "" {
		logCfg.Format = cfg.Observability.LogFormat
	}
	if cfg.Debug {
		logCfg.Level = "debug"
	}
	logging.Init(logCfg)

	a := &Application{
		cfg: cfg,
		log: logging.WithComponent("app"),
	}

	estimator, err := cost.NewEstimator(cfg.Cost.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("cost ledger: %w", err)
	}
	a.estimator = estimator

	sender := osc.NewClient(cfg.OSC.Address, int(cfg.OSC.OutputPort))
	a.typing = chatbox.NewTyping(sender)
	a.emitter = chatbox.NewEmitter(chatbox.Config{
		DisplayTime: cfg.OSC.DisplayTime(),
		MaxChunks:   cfg.OSC.MaxMessageChunks,
	}, sender, a.typing)

	provider := "openai"
	if cfg.OpenAI.Model == config.MockModel {
		provider = "mock"
		a.adapter = mock.New()
	} else {
		a.adapter = openaistt.New(openaistt.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	}

	a.publisher = events.New(&events.Config{
		Brokers:   cfg.Events.Brokers,
		Topic:     cfg.Events.Topic,
		Principal: cfg.Events.Principal,
		Enabled:   cfg.Events.Enabled,
	})

	a.dispatcher = dispatch.New(dispatch.Config{
		Provider:          provider,
		Model:             cfg.OpenAI.Model,
		TargetLanguage:    cfg.Translation.TargetLanguage,
		IncludeOriginal:   cfg.Translation.IncludeOriginalMessage,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		OnDrop:            func() { a.typing.Set(false) },
	}, a.adapter, a.emitter, a.publisher, a.estimator)

	debugDir := ""
	if cfg.Debug {
		debugDir = cfg.DebugAudioDir
	}
	a.segmenter = segment.New(segment.Config{
		SampleRate:       cfg.Audio.SampleRate,
		GateThreshold:    cfg.Audio.NoiseGateThreshold,
		GateHold:         cfg.Audio.GateHold(),
		SilenceThreshold: cfg.Audio.SilenceThreshold(),
		MinDuration:      cfg.Audio.MinDuration(),
		DebugDir:         debugDir,
		OnSpeechStart:    func() { a.typing.Set(true) },
		OnDiscard:        func() { a.typing.Set(false) },
	})

	a.capture = audio.New(audio.Config{SampleRate: cfg.Audio.SampleRate})

	listener, err := osc.NewListener(cfg.OSC.Address, int(cfg.OSC.InputPort))
	if err != nil {
		return nil, fmt.Errorf("osc listener: %w", err)
	}
	a.listener = listener

	if cfg.Observability.MetricsAddr != "" {
		a.obs = observability.NewServer(cfg.Observability.MetricsAddr)
	}
	if cfg.Replay.WatchDir != "" {
		a.replayWatcher = replay.New(replay.Config{Dir: cfg.Replay.WatchDir}, a.segmenter)
	}

	a.log.Info().
		Str("provider", provider).
		Str("model", cfg.OpenAI.Model).
		Bool("translation", cfg.Translation.Enabled()).
		Str("target_language", cfg.Translation.TargetLanguage).
		Msg("Chatbox translator assembled")
	return a, nil
}

// Run starts the pipeline and blocks until the context ends or the
// capture device fails.
func (a *Application) Run(ctx context.Context) error {
	a.StartupTime = time.Now().UTC()
	a.log.Info().Time("startup_time", a.StartupTime).Msg("Chatbox translator starting")

	if a.obs != nil {
		a.obs.Start()
	}
	a.listener.Start()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// An unusable microphone is fatal before the pipeline starts.
	if err := a.capture.Start(runCtx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.typing.Run(runCtx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.emitter.Run(runCtx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		// The segmenter's lifetime is tied to the frame channel so a
		// final utterance still flushes after capture stops.
		a.segmenter.Run(context.Background(), a.capture.Frames())
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.dispatcher.Run(runCtx, a.segmenter.Segments())
	}()
	if a.replayWatcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.replayWatcher.Run(runCtx); err != nil {
				a.log.Warn().Err(err).Msg("Replay watcher stopped")
			}
		}()
	}

	if a.obs != nil {
		a.obs.SetReady(true)
	}
	a.log.Info().Msg("Pipeline running")

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("Shutdown signal received")
	case err := <-a.capture.Err():
		runErr = fmt.Errorf("capture failed: %w", err)
	}

	cancel()
	a.shutdown(&wg)
	return runErr
}

// shutdown releases everything in pipeline order.
func (a *Application) shutdown(wg *sync.WaitGroup) {
	a.capture.Stop()
	wg.Wait()

	if err := a.listener.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close OSC listener")
	}
	if err := a.adapter.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close transcription adapter")
	}
	if err := a.publisher.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close event publisher")
	}
	if a.obs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.obs.Shutdown(shutdownCtx)
	}

	a.log.Info().
		Float64("total_cost_usd", a.estimator.Total()).
		Msg("Chatbox translator stopped")
}
