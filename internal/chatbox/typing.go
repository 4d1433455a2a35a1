package chatbox

import (
	"context"

	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"

	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/observability/metrics"
	"vrc-chatbox-translator/internal/osc"
)

// Typing drives the chatbox typing indicator. Set never blocks and is
// safe from any goroutine, only the latest requested state matters.
type Typing struct {
	sender Sender
	ch     chan bool
	log    zerolog.Logger
}

// NewTyping creates a typing indicator driver.
func NewTyping(sender Sender) *Typing {
	return &Typing{
		sender: sender,
		ch:     make(chan bool, 1),
		log:    logging.WithComponent("typing"),
	}
}

// Set requests an indicator state. Newest wins.
func (t *Typing) Set(on bool) {
	for {
		select {
		case t.ch <- on:
			return
		default:
			select {
			case <-t.ch:
			default:
			}
		}
	}
}

// Run forwards state changes to the game until the context ends, then
// clears the indicator.
func (t *Typing) Run(ctx context.Context) {
	current := false
	for {
		select {
		case <-ctx.Done():
			if current {
				t.send(false)
			}
			return
		case on := <-t.ch:
			if on == current {
				continue
			}
			current = on
			t.send(on)
		}
	}
}

func (t *Typing) send(on bool) {
	metrics.DefaultMetrics.SetTyping(on)
	msg := goosc.NewMessage(osc.ChatboxTypingAddr)
	msg.Append(on)
	if err := t.sender.Send(msg); err != nil {
		t.log.Warn().Err(err).Msg("Failed to send typing indicator")
	}
}
