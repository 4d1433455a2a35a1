package chatbox

import (
	"context"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"

	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/observability/metrics"
	"vrc-chatbox-translator/internal/osc"
)

// Sender sends OSC packets to the game.
type Sender interface {
	Send(packet goosc.Packet) error
}

// Config controls chatbox pacing.
type Config struct {
	// DisplayTime is how long each chunk stays visible before the next
	// one is sent.
	DisplayTime time.Duration

	// MaxChunks caps how many chunks one message may use, overflow is
	// truncated.
	MaxChunks int
}

func (c Config) withDefaults() Config {
	if c.DisplayTime <= 0 {
		c.DisplayTime = 7 * time.Second
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = 4
	}
	return c
}

// Emitter owns the chatbox. Show never blocks the caller, and a newer
// message preempts whatever is still being paced out, stale text is
// never queued behind fresh text.
type Emitter struct {
	cfg    Config
	sender Sender
	typing *Typing
	inbox  chan string
	log    zerolog.Logger
}

// NewEmitter creates an Emitter. typing may be nil when no indicator is
// wired up.
func NewEmitter(cfg Config, sender Sender, typing *Typing) *Emitter {
	return &Emitter{
		cfg:    cfg.withDefaults(),
		sender: sender,
		typing: typing,
		inbox:  make(chan string, 1),
		log:    logging.WithComponent("chatbox"),
	}
}

// Show queues text for display. Newest wins.
func (e *Emitter) Show(text string) {
	for {
		select {
		case e.inbox <- text:
			return
		default:
			select {
			case <-e.inbox:
				metrics.DefaultMetrics.RecordPreemption()
				e.log.Debug().Msg("Replacing queued message with newer text")
			default:
			}
		}
	}
}

// Run displays queued messages until the context ends.
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-e.inbox:
			for text != "" && ctx.Err() == nil {
				text = e.emit(ctx, text)
			}
		}
	}
}

// emit sends one message chunk by chunk. It returns replacement text
// when a newer message preempts the pacing wait, empty otherwise.
func (e *Emitter) emit(ctx context.Context, text string) string {
	chunks, truncated := Chunk(text, e.cfg.MaxChunks)
	if truncated {
		metrics.DefaultMetrics.RecordTruncation()
		e.log.Warn().Int("chunks", len(chunks)).Msg("Message over chunk cap, truncating")
	}

	for i, chunk := range chunks {
		e.sendChunk(chunk, i == 0)

		if i == len(chunks)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ""
		case newer := <-e.inbox:
			metrics.DefaultMetrics.RecordPreemption()
			e.log.Debug().Int("chunks_sent", i+1).Msg("Newer message preempts paced display")
			return newer
		case <-time.After(e.cfg.DisplayTime):
		}
	}

	if e.typing != nil {
		e.typing.Set(false)
	}
	return ""
}

// sendChunk delivers one chunk. Send failures drop the chunk, not the
// message.
func (e *Emitter) sendChunk(chunk string, first bool) {
	msg := goosc.NewMessage(osc.ChatboxInputAddr)
	msg.Append(chunk)
	msg.Append(true)  // bypass the in-game keyboard
	msg.Append(first) // notification sound only once per message
	if err := e.sender.Send(msg); err != nil {
		metrics.DefaultMetrics.RecordChatboxSendError()
		e.log.Warn().Err(err).Msg("Failed to send chatbox chunk")
		return
	}
	metrics.DefaultMetrics.RecordChunkSent()
}
