// Package chatbox paces transcript text into VRChat's chatbox over OSC.
package chatbox

// MaxChunkLen is VRChat's per-message chatbox character limit.
const MaxChunkLen = 144

// Chunk splits text into chatbox-sized pieces on rune boundaries,
// keeping at most maxChunks of them. The second return reports whether
// overflow was cut off.
func Chunk(text string, maxChunks int) ([]string, bool) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, false
	}

	var chunks []string
	for start := 0; start < len(runes); start += MaxChunkLen {
		end := start + MaxChunkLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	if maxChunks > 0 && len(chunks) > maxChunks {
		return chunks[:maxChunks], true
	}
	return chunks, false
}
