package transport

// MaxChunkLength is the per-message length limit imposed by the chat
// platform. Plain text longer than this is split client-side; files attach
// only to the final chunk.
const MaxChunkLength = 2000

// Content is the tagged message-content variant: either plain text that the
// sender chunks, or a pre-structured rich payload sent as-is.
type Content interface {
	isContent()
}

// PlainText is chunked at MaxChunkLength runes before sending.
type PlainText struct {
	Text string
}

func (PlainText) isContent() {}

// RichPayload is a pre-built structured message, sent in a single call.
type RichPayload struct {
	Title       string
	Description string
	Color       int
	Fields      map[string]string
}

func (RichPayload) isContent() {}

// Chunk splits text into rune-safe pieces of at most size runes. Empty input
// yields a single empty chunk so the caller still produces one send.
func Chunk(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		n := size
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
