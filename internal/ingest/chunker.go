package ingest

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

// ChunkText splits text into windows of size characters, each starting
// overlap characters before the end of the previous one. Character means
// rune, so multi byte text is never cut mid code point.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
