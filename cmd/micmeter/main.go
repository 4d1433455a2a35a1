package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vrc-chatbox-translator/internal/audio"
	"vrc-chatbox-translator/internal/service/segment"
)

// Meter resolution: one bar character per 0.05 peak amplitude.
const barScale = 20

func main() {
	sampleRate := flag.Int("rate", 16000, "capture sample rate in Hz")
	threshold := flag.Float64("threshold", 0.15, "noise gate threshold to test")
	hold := flag.Duration("hold", 300*time.Millisecond, "noise gate hold time")
	every := flag.Int("every", 5, "print one meter line per N frames")
	flag.Parse()
	if *every < 1 {
		*every = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	capture := audio.New(audio.Config{SampleRate: *sampleRate})
	if err := capture.Start(ctx); err != nil {
		log.Fatalf("failed to open input device: %v", err)
	}
	defer capture.Stop()

	gate := segment.NewNoiseGate(*threshold, *hold)
	log.Printf("listening, threshold=%.3f hold=%v (Ctrl+C to stop)", *threshold, *hold)

	var clock time.Duration
	var frames int
	wasOpen := false
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-capture.Err():
			log.Fatalf("capture failed: %v", err)
		case frame, ok := <-capture.Frames():
			if !ok {
				return
			}
			clock += audio.Duration(len(frame), *sampleRate)
			peak := audio.Peak(frame)
			open := gate.Update(peak, clock)

			frames++
			if open != wasOpen {
				if open {
					log.Printf("gate OPEN  peak=%.3f", peak)
				} else {
					log.Printf("gate close peak=%.3f", peak)
				}
				wasOpen = open
			} else if frames%*every == 0 {
				state := "     "
				if open {
					state = "OPEN "
				}
				log.Printf("%s %.3f %s", state, peak, strings.Repeat("#", int(peak*barScale)))
			}
		}
	}
}
