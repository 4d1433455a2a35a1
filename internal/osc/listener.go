package osc

import (
	"fmt"
	"sync/atomic"

	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"

	"vrc-chatbox-translator/internal/observability/logging"
	"vrc-chatbox-translator/internal/observability/metrics"
)

// Listener receives OSC messages from the game and tracks the player's
// mute state. Mute changes are observational only, the pipeline keeps
// running either way.
type Listener struct {
	server *goosc.Server
	muted  atomic.Bool
	closed atomic.Bool
	log    zerolog.Logger
}

// NewListener builds a listener bound to the game's output port.
func NewListener(address string, port int) (*Listener, error) {
	l := &Listener{
		log: logging.WithComponent("osc_listener"),
	}

	dispatcher := goosc.NewStandardDispatcher()
	if err := dispatcher.AddMsgHandler(MuteSelfAddr, l.handleMute); err != nil {
		return nil, fmt.Errorf("register mute handler: %w", err)
	}
	l.server = &goosc.Server{
		Addr:       fmt.Sprintf("%s:%d", address, port),
		Dispatcher: dispatcher,
	}
	return l, nil
}

// Start serves inbound messages until Close. Listen failures are logged,
// the chatbox output path does not depend on them.
func (l *Listener) Start() {
	go func() {
		l.log.Info().Str("addr", l.server.Addr).Msg("OSC listener started")
		if err := l.server.ListenAndServe(); err != nil && !l.closed.Load() {
			l.log.Error().Err(err).Msg("OSC listener stopped unexpectedly")
		}
	}()
}

// Muted reports the last MuteSelf value received from the game.
func (l *Listener) Muted() bool {
	return l.muted.Load()
}

// Close shuts the listener down.
func (l *Listener) Close() error {
	l.closed.Store(true)
	return l.server.CloseConnection()
}

func (l *Listener) handleMute(msg *goosc.Message) {
	if len(msg.Arguments) == 0 {
		return
	}
	muted, ok := msg.Arguments[0].(bool)
	if !ok {
		l.log.Debug().Str("address", msg.Address).Msg("Ignoring non-bool mute argument")
		return
	}
	l.muted.Store(muted)
	metrics.DefaultMetrics.SetMuted(muted)
	l.log.Info().Bool("muted", muted).Msg("Mute state changed")
}
