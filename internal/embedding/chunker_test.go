package embedding

import (
	"strings"
	"testing"
)

func TestChunker_EmptyInput(t *testing.T) {
	c := NewChunker(500, 50, 2000, 200)
	if chunks := c.Chunk("   \n\t "); chunks != nil {
		t.Errorf("expected nil chunks for whitespace-only input, got %v", chunks)
	}
}

func TestChunker_ShortInputSingleChunk(t *testing.T) {
	c := NewChunker(500, 50, 2000, 200)
	text := "a short note body"
	chunks := c.Chunk(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("expected single chunk equal to input, got %v", chunks)
	}
}

func TestChunker_LongInputOverlaps(t *testing.T) {
	c := NewChunker(500, 50, 2000, 200)
	text := strings.Repeat("word ", 3000)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long input, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if strings.TrimSpace(ch) == "" {
			t.Error("chunk should not be empty")
		}
	}
}

func TestChunker_CharFallbackWhenNoEncoding(t *testing.T) {
	c := &Chunker{charChunkSize: 20, charOverlap: 5}
	text := strings.Repeat("x", 100)
	chunks := c.chunkByChars(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple char chunks, got %d", len(chunks))
	}
	if len([]rune(chunks[0])) != 20 {
		t.Errorf("first chunk length = %d, want 20", len([]rune(chunks[0])))
	}
}
