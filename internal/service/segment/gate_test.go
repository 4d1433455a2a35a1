package segment

import (
	"testing"
	"time"
)

func TestNoiseGate_OpensOnLoudFrame(t *testing.T) {
	g := NewNoiseGate(0.3, 200*time.Millisecond)

	if g.Process([]float32{0.1, 0.2}, 50*time.Millisecond) {
		t.Error("expected gate closed on quiet input")
	}
	if !g.Process([]float32{0.1, 0.5}, 100*time.Millisecond) {
		t.Error("expected gate open on loud input")
	}
	if !g.Open() {
		t.Error("expected Open to report open state")
	}
}

func TestNoiseGate_ThresholdIsStrict(t *testing.T) {
	g := NewNoiseGate(0.3, 200*time.Millisecond)

	if g.Process([]float32{0.3}, 50*time.Millisecond) {
		t.Error("expected gate closed at exactly the threshold")
	}
	if !g.Process([]float32{0.30001}, 100*time.Millisecond) {
		t.Error("expected gate open just above the threshold")
	}
}

func TestNoiseGate_HoldKeepsGateOpen(t *testing.T) {
	g := NewNoiseGate(0.3, 200*time.Millisecond)
	quiet := []float32{0.05}

	g.Process([]float32{0.5}, 100*time.Millisecond)

	tests := []struct {
		name     string
		at       time.Duration
		expected bool
	}{
		{"well within hold", 150 * time.Millisecond, true},
		{"still within hold", 250 * time.Millisecond, true},
		{"exactly at hold boundary", 300 * time.Millisecond, true},
		{"past hold", 350 * time.Millisecond, false},
		{"stays closed", 400 * time.Millisecond, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Process(quiet, tt.at); got != tt.expected {
				t.Errorf("at %v: expected open=%v, got %v", tt.at, tt.expected, got)
			}
		})
	}
}

func TestNoiseGate_NegativePeaksCount(t *testing.T) {
	g := NewNoiseGate(0.3, 200*time.Millisecond)

	if !g.Process([]float32{-0.6, 0.1}, 50*time.Millisecond) {
		t.Error("expected gate open on loud negative sample")
	}
}

func TestNoiseGate_ReopensAfterClose(t *testing.T) {
	g := NewNoiseGate(0.3, 100*time.Millisecond)
	quiet := []float32{0.05}
	loud := []float32{0.8}

	g.Process(loud, 50*time.Millisecond)
	g.Process(quiet, 200*time.Millisecond)
	if g.Open() {
		t.Fatal("expected gate closed after hold expired")
	}
	if !g.Process(loud, 250*time.Millisecond) {
		t.Error("expected gate to reopen on loud input")
	}
}
