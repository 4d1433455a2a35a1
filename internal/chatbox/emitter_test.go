package chatbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"

	"vrc-chatbox-translator/internal/osc"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []*goosc.Message
	failFor  int
}

func (f *fakeSender) Send(p goosc.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor > 0 {
		f.failFor--
		return errors.New("socket send failed")
	}
	if m, ok := p.(*goosc.Message); ok {
		f.messages = append(f.messages, m)
	}
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeSender) message(i int) *goosc.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[i]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func startEmitter(t *testing.T, cfg Config, sender Sender, typing *Typing) *Emitter {
	t.Helper()
	e := NewEmitter(cfg, sender, typing)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)
	return e
}

func TestEmitter_SendsSingleChunk(t *testing.T) {
	sender := &fakeSender{}
	e := startEmitter(t, Config{DisplayTime: 10 * time.Millisecond}, sender, nil)

	e.Show("hello world")
	waitFor(t, time.Second, func() bool { return sender.count() == 1 })

	msg := sender.message(0)
	if msg.Address != osc.ChatboxInputAddr {
		t.Errorf("expected address %q, got %q", osc.ChatboxInputAddr, msg.Address)
	}
	if len(msg.Arguments) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(msg.Arguments))
	}
	if got := msg.Arguments[0]; got != "hello world" {
		t.Errorf("expected text argument, got %v", got)
	}
	if got := msg.Arguments[1]; got != true {
		t.Errorf("expected immediate-send argument true, got %v", got)
	}
	if got := msg.Arguments[2]; got != true {
		t.Errorf("expected notify argument true for first chunk, got %v", got)
	}
}

func TestEmitter_PacesMultipleChunks(t *testing.T) {
	sender := &fakeSender{}
	e := startEmitter(t, Config{DisplayTime: 20 * time.Millisecond, MaxChunks: 4}, sender, nil)

	text := strings.Repeat("a", 150)
	e.Show(text)
	waitFor(t, time.Second, func() bool { return sender.count() == 2 })

	first := sender.message(0)
	second := sender.message(1)
	if got := first.Arguments[0]; got != strings.Repeat("a", 144) {
		t.Errorf("unexpected first chunk: %v", got)
	}
	if got := second.Arguments[0]; got != strings.Repeat("a", 6) {
		t.Errorf("unexpected second chunk: %v", got)
	}
	if got := second.Arguments[2]; got != false {
		t.Errorf("expected notify false on second chunk, got %v", got)
	}
}

func TestEmitter_CapsChunkCount(t *testing.T) {
	sender := &fakeSender{}
	e := startEmitter(t, Config{DisplayTime: 5 * time.Millisecond, MaxChunks: 3}, sender, nil)

	e.Show(strings.Repeat("a", 144*5))
	waitFor(t, time.Second, func() bool { return sender.count() == 3 })

	// Give the emitter a chance to (wrongly) send more.
	time.Sleep(50 * time.Millisecond)
	if got := sender.count(); got != 3 {
		t.Errorf("expected exactly 3 chunks, got %d", got)
	}
}

func TestEmitter_NewerMessagePreemptsPacing(t *testing.T) {
	sender := &fakeSender{}
	e := startEmitter(t, Config{DisplayTime: 3 * time.Second, MaxChunks: 4}, sender, nil)

	e.Show(strings.Repeat("a", 300))
	waitFor(t, time.Second, func() bool { return sender.count() == 1 })

	e.Show("fresh text")
	waitFor(t, time.Second, func() bool { return sender.count() == 2 })

	if got := sender.message(1).Arguments[0]; got != "fresh text" {
		t.Errorf("expected preempting message, got %v", got)
	}
}

func TestEmitter_ShowReplacesQueuedMessage(t *testing.T) {
	sender := &fakeSender{}
	e := NewEmitter(Config{DisplayTime: 5 * time.Millisecond}, sender, nil)

	// No consumer running yet, the second Show replaces the first.
	e.Show("stale")
	e.Show("current")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)

	waitFor(t, time.Second, func() bool { return sender.count() == 1 })
	time.Sleep(30 * time.Millisecond)
	if got := sender.count(); got != 1 {
		t.Fatalf("expected 1 message, got %d", got)
	}
	if got := sender.message(0).Arguments[0]; got != "current" {
		t.Errorf("expected newest message, got %v", got)
	}
}

func TestEmitter_SendFailureDropsChunkOnly(t *testing.T) {
	sender := &fakeSender{failFor: 1}
	e := startEmitter(t, Config{DisplayTime: 5 * time.Millisecond, MaxChunks: 4}, sender, nil)

	e.Show(strings.Repeat("a", 150))
	waitFor(t, time.Second, func() bool { return sender.count() == 1 })

	msg := sender.message(0)
	if got := msg.Arguments[0]; got != strings.Repeat("a", 6) {
		t.Errorf("expected surviving second chunk, got %v", got)
	}
	if got := msg.Arguments[2]; got != false {
		t.Errorf("expected notify false on second chunk, got %v", got)
	}
}

func TestEmitter_ClearsTypingAfterMessage(t *testing.T) {
	sender := &fakeSender{}
	typing := NewTyping(sender)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go typing.Run(ctx)

	e := startEmitter(t, Config{DisplayTime: 5 * time.Millisecond}, sender, typing)

	typing.Set(true)
	waitFor(t, time.Second, func() bool { return sender.count() >= 1 })

	e.Show("done talking")

	waitFor(t, time.Second, func() bool {
		var chunkSeen, typingOff bool
		for i := 0; i < sender.count(); i++ {
			msg := sender.message(i)
			switch msg.Address {
			case osc.ChatboxInputAddr:
				chunkSeen = true
			case osc.ChatboxTypingAddr:
				if len(msg.Arguments) == 1 && msg.Arguments[0] == false {
					typingOff = true
				}
			}
		}
		return chunkSeen && typingOff
	})

	var typingStates []bool
	for i := 0; i < sender.count(); i++ {
		msg := sender.message(i)
		if msg.Address == osc.ChatboxTypingAddr {
			typingStates = append(typingStates, msg.Arguments[0].(bool))
		}
	}
	if len(typingStates) != 2 || typingStates[0] != true || typingStates[1] != false {
		t.Errorf("expected typing [true false], got %v", typingStates)
	}
}
