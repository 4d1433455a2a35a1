package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/observability/metrics"
	"vrc-chatbox-translator/internal/resilience"
)

// Frame is one block of mono samples as delivered by the capture device.
type Frame []float32

// Config controls the capture stream.
type Config struct {
	// SampleRate in Hz.
	SampleRate int
	// FrameSize is the number of samples per frame. Defaults to 50ms worth.
	FrameSize int
	// QueueSize bounds the frame channel.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.FrameSize <= 0 {
		c.FrameSize = c.SampleRate / 20
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 32
	}
	return c
}

// source abstracts the capture device so the read loop can be tested
// without audio hardware.
type source interface {
	Start() error
	Read() ([]float32, error)
	Restart() error
	Stop() error
	Close() error
}

// Capture reads frames from the default input device and fans them out
// on a bounded channel. The read loop never blocks on a slow consumer:
// when the channel is full the newest frame is dropped.
type Capture struct {
	cfg    Config
	src    source
	frames chan Frame
	errs   chan error
	log    zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a Capture backed by the default portaudio input device.
func New(cfg Config) *Capture {
	cfg = cfg.withDefaults()
	return newCapture(cfg, &paSource{
		sampleRate: cfg.SampleRate,
		frameSize:  cfg.FrameSize,
		buf:        make([]float32, cfg.FrameSize),
	})
}

func newCapture(cfg Config, src source) *Capture {
	return &Capture{
		cfg:    cfg,
		src:    src,
		frames: make(chan Frame, cfg.QueueSize),
		errs:   make(chan error, 1),
		log:    logging.WithComponent("capture"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Frames returns the channel of captured frames.
func (c *Capture) Frames() <-chan Frame {
	return c.frames
}

// Err reports a fatal capture failure. At most one error is ever sent.
func (c *Capture) Err() <-chan error {
	return c.errs
}

// Start opens the input device and launches the read loop. An unusable
// device is reported here rather than on Err.
func (c *Capture) Start(ctx context.Context) error {
	if err := c.src.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	c.log.Info().
		Int("sample_rate", c.cfg.SampleRate).
		Int("frame_size", c.cfg.FrameSize).
		Msg("Capture started")
	go c.loop(ctx)
	return nil
}

// Stop ends the read loop and releases the device.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
		if err := c.src.Stop(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to stop capture stream")
		}
		if err := c.src.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to close capture stream")
		}
		close(c.frames)
		c.log.Info().Msg("Capture stopped")
	})
}

func (c *Capture) loop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		samples, err := c.read(ctx)
		if err != nil {
			select {
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			default:
			}
			c.log.Error().Err(err).Msg("Capture read failed, restarting stream")
			metrics.DefaultMetrics.RecordCaptureRestart()
			if rerr := c.src.Restart(); rerr != nil {
				c.fatal(fmt.Errorf("restart capture: %w", rerr))
				return
			}
			continue
		}

		frame := make(Frame, len(samples))
		copy(frame, samples)
		metrics.DefaultMetrics.RecordFrameCaptured()

		select {
		case c.frames <- frame:
		default:
			metrics.DefaultMetrics.RecordFrameDropped()
			c.log.Warn().Msg("Frame queue full, dropping frame")
		}
	}
}

// read attempts a single device read, retrying transient failures.
func (c *Capture) read(ctx context.Context) ([]float32, error) {
	var samples []float32
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		var rerr error
		samples, rerr = c.src.Read()
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func (c *Capture) fatal(err error) {
	c.log.Error().Err(err).Msg("Capture failed")
	select {
	case c.errs <- err:
	default:
	}
}

// paSource is the portaudio-backed capture device.
type paSource struct {
	sampleRate int
	frameSize  int
	buf        []float32
	stream     *portaudio.Stream
}

func (p *paSource) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	if err := p.open(); err != nil {
		portaudio.Terminate()
		return err
	}
	return nil
}

func (p *paSource) open() error {
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(p.sampleRate), p.frameSize, p.buf)
	if err != nil {
		return fmt.Errorf("open default input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}
	p.stream = stream
	return nil
}

func (p *paSource) Read() ([]float32, error) {
	if p.stream == nil {
		return nil, fmt.Errorf("capture stream not open")
	}
	if err := p.stream.Read(); err != nil {
		return nil, err
	}
	return p.buf, nil
}

func (p *paSource) Restart() error {
	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	return p.open()
}

func (p *paSource) Stop() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Stop()
}

func (p *paSource) Close() error {
	var err error
	if p.stream != nil {
		err = p.stream.Close()
		p.stream = nil
	}
	portaudio.Terminate()
	return err
}
