package ingest

import "strings"

// Chunk splits source text into overlapping chunks bounded by maxSize.
// Paragraph boundaries are preferred split points; paragraphs larger than
// maxSize are hard-split into windows whose tails repeat as the next
// window's head (the overlap), so no boundary sentence is lost to a cut.
func Chunk(text string, maxSize, overlap int) []string {
	if maxSize <= 0 {
		maxSize = 1100
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = 0
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > maxSize {
			flush()
			chunks = append(chunks, splitLong(para, maxSize, overlap)...)
			continue
		}

		joined := current.Len() + len(para)
		if current.Len() > 0 {
			joined += 2 // separator
		}
		if joined > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// splitLong windows an oversized paragraph, stepping maxSize-overlap each
// time so consecutive windows share overlap characters.
func splitLong(s string, maxSize, overlap int) []string {
	step := maxSize - overlap
	var out []string
	for start := 0; start < len(s); start += step {
		end := start + maxSize
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[start:end])
		if end == len(s) {
			break
		}
	}
	return out
}
