package audio

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	wav "github.com/youpy/go-wav"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5, -0.5, 1, -1, 0.999}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV returned error: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV returned error: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i, want := range samples {
		if diff := math.Abs(float64(decoded[i] - want)); diff > 0.001 {
			t.Errorf("sample %d: expected %f, got %f", i, want, decoded[i])
		}
	}
}

func TestEncodeWAV_ClampsOutOfRange(t *testing.T) {
	data, err := EncodeWAV([]float32{2.5, -3}, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV returned error: %v", err)
	}

	decoded, _, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV returned error: %v", err)
	}
	if decoded[0] < 0.99 {
		t.Errorf("expected positive overflow clamped to ~1, got %f", decoded[0])
	}
	if decoded[1] > -0.99 {
		t.Errorf("expected negative overflow clamped to ~-1, got %f", decoded[1])
	}
}

func TestEncodeWAV_InvalidSampleRate(t *testing.T) {
	if _, err := EncodeWAV([]float32{0}, 0); err == nil {
		t.Error("expected error for zero sample rate, got nil")
	}
}

func TestDecodeWAV_StereoDownmix(t *testing.T) {
	var buf bytes.Buffer
	w := wav.NewWriter(&buf, 2, 2, 16000, 16)
	err := w.WriteSamples([]wav.Sample{
		{Values: [2]int{16384, 0}},
		{Values: [2]int{-16384, -16384}},
	})
	if err != nil {
		t.Fatalf("WriteSamples returned error: %v", err)
	}

	decoded, _, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV returned error: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(decoded))
	}
	if diff := math.Abs(float64(decoded[0]) - 0.25); diff > 0.001 {
		t.Errorf("expected averaged sample 0.25, got %f", decoded[0])
	}
	if diff := math.Abs(float64(decoded[1]) + 0.5); diff > 0.001 {
		t.Errorf("expected averaged sample -0.5, got %f", decoded[1])
	}
}

func TestDecodeWAV_UnsupportedBits(t *testing.T) {
	var buf bytes.Buffer
	w := wav.NewWriter(&buf, 1, 1, 8000, 8)
	if err := w.WriteSamples([]wav.Sample{{Values: [2]int{100, 0}}}); err != nil {
		t.Fatalf("WriteSamples returned error: %v", err)
	}

	_, _, err := DecodeWAV(buf.Bytes())
	if err == nil {
		t.Fatal("expected error for 8-bit payload, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported bits per sample") {
		t.Errorf("expected bits-per-sample error, got %v", err)
	}
}

func TestDecodeWAV_Garbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav file")); err == nil {
		t.Error("expected error for malformed payload, got nil")
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		rate     int
		expected time.Duration
	}{
		{"one second", 16000, 16000, time.Second},
		{"half second", 8000, 16000, 500 * time.Millisecond},
		{"empty", 0, 16000, 0},
		{"zero rate", 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Duration(tt.n, tt.rate); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestPeak(t *testing.T) {
	tests := []struct {
		name     string
		samples  []float32
		expected float64
	}{
		{"empty", nil, 0},
		{"positive", []float32{0.1, 0.5, 0.2}, 0.5},
		{"negative dominates", []float32{0.1, -0.8, 0.2}, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Peak(tt.samples); math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}
