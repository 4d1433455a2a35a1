package main

import (
	"flag"
	"log"
	"strings"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"

	"vrc-chatbox-translator/internal/chatbox"
	"vrc-chatbox-translator/internal/osc"
)

func main() {
	address := flag.String("address", "127.0.0.1", "VRChat OSC address")
	port := flag.Int("port", 9000, "VRChat OSC listening port")
	display := flag.Duration("display", 7*time.Second, "display time per chunk")
	maxChunks := flag.Int("chunks", 4, "maximum chunks per message (0 = unlimited)")
	flag.Parse()

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		log.Fatal("usage: chatboxsend [flags] <message>")
	}

	client := osc.NewClient(*address, *port)

	chunks, truncated := chatbox.Chunk(text, *maxChunks)
	if truncated {
		log.Printf("message truncated to %d chunks", len(chunks))
	}

	for i, chunk := range chunks {
		msg := goosc.NewMessage(osc.ChatboxInputAddr)
		msg.Append(chunk)
		msg.Append(true)
		msg.Append(i == 0)
		if err := client.Send(msg); err != nil {
			log.Fatalf("failed to send chunk %d: %v", i+1, err)
		}
		log.Printf("sent chunk %d/%d (%d chars)", i+1, len(chunks), len([]rune(chunk)))

		if i < len(chunks)-1 {
			time.Sleep(*display)
		}
	}
}
