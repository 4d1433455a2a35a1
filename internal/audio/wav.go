// Package audio provides microphone capture and WAV encoding for the pipeline.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	wav "github.com/youpy/go-wav"
)

// EncodeWAV encodes mono float32 samples as a 16-bit PCM WAV payload.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: invalid sample rate %d", sampleRate)
	}

	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(len(samples)), 1, uint32(sampleRate), 16)

	out := make([]wav.Sample, len(samples))
	for i, s := range samples {
		out[i].Values[0] = int(math.Round(float64(clamp(s)) * 32767))
	}
	if err := w.WriteSamples(out); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV decodes a 16-bit PCM WAV payload into mono float32 samples.
// Stereo input is downmixed by averaging channels.
func DecodeWAV(data []byte) ([]float32, int, error) {
	r := wav.NewReader(bytes.NewReader(data))

	format, err := r.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if format.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("decode wav: unsupported bits per sample %d", format.BitsPerSample)
	}
	if format.NumChannels != 1 && format.NumChannels != 2 {
		return nil, 0, fmt.Errorf("decode wav: unsupported channel count %d", format.NumChannels)
	}

	var samples []float32
	for {
		block, err := r.ReadSamples(2048)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("decode wav: %w", err)
		}
		for _, s := range block {
			v := float32(s.Values[0]) / 32768
			if format.NumChannels == 2 {
				v = (v + float32(s.Values[1])/32768) / 2
			}
			samples = append(samples, v)
		}
	}
	return samples, int(format.SampleRate), nil
}

// Duration returns the playback time of n samples at the given rate.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(sampleRate) * float64(time.Second))
}

// Peak returns the maximum absolute amplitude in the samples.
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
