package embedding

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Chunker splits text into overlapping chunks sized for embedding. It prefers a
// tiktoken-compatible BPE tokenizer (token-accurate chunk sizing); if the encoding
// can't be loaded (e.g. no network access to fetch the BPE ranks file) it falls
// back to character-based chunking.
type Chunker struct {
	tokenChunkSize int
	tokenOverlap   int
	charChunkSize  int
	charOverlap    int
	enc            *tiktoken.Tiktoken
}

// NewChunker creates a chunker with the given token and character chunk/overlap sizes.
// It attempts to load the cl100k_base encoding; on failure it chunks by characters only.
func NewChunker(tokenChunkSize, tokenOverlap, charChunkSize, charOverlap int) *Chunker {
	if tokenChunkSize <= 0 {
		tokenChunkSize = 500
	}
	if tokenOverlap < 0 || tokenOverlap >= tokenChunkSize {
		tokenOverlap = 50
	}
	if charChunkSize <= 0 {
		charChunkSize = 2000
	}
	if charOverlap < 0 || charOverlap >= charChunkSize {
		charOverlap = 200
	}
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Chunker{
		tokenChunkSize: tokenChunkSize,
		tokenOverlap:   tokenOverlap,
		charChunkSize:  charChunkSize,
		charOverlap:    charOverlap,
		enc:            enc,
	}
}

// Chunk splits text into overlapping pieces. Whitespace-only or empty input
// produces no chunks; input that already fits in a single chunk is returned as-is.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.enc != nil {
		return c.chunkByTokens(text)
	}
	return c.chunkByChars(text)
}

func (c *Chunker) chunkByTokens(text string) []string {
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= c.tokenChunkSize {
		return []string{text}
	}
	step := c.tokenChunkSize - c.tokenOverlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.tokenChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.enc.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

func (c *Chunker) chunkByChars(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.charChunkSize {
		return []string{text}
	}
	step := c.charChunkSize - c.charOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.charChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
