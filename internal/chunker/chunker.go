// Package chunker provides deterministic text segmentation for indexing.
package chunker

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// BoundaryPolicy controls how chunk boundaries are placed.
type BoundaryPolicy string

const (
	// BoundaryNone cuts chunks at exactly the configured size.
	BoundaryNone BoundaryPolicy = "none"
	// BoundarySentence snaps each cut to the nearest sentence terminator at or
	// before the size limit, falling back to a hard cut when the window
	// contains no terminator.
	BoundarySentence BoundaryPolicy = "sentence"
)

// Config holds chunking parameters. Size and Overlap are in characters (runes).
type Config struct {
	Size     int
	Overlap  int
	Boundary BoundaryPolicy
}

// Validate checks the config. Overlap may not exceed half the chunk size,
// so consecutive windows always make progress.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap must be non-negative, got %d", c.Overlap)
	}
	if c.Overlap > c.Size/2 {
		return fmt.Errorf("chunk overlap %d exceeds half the chunk size %d", c.Overlap, c.Size)
	}
	switch c.Boundary {
	case BoundaryNone, BoundarySentence, "":
	default:
		return fmt.Errorf("unknown boundary policy %q", c.Boundary)
	}
	return nil
}

// Chunker splits document text into overlapping character-window chunks.
// Chunking is pure: the same text and config always produce the same chunks.
type Chunker struct {
	cfg Config
}

// New creates a chunker, validating the config.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}
	if cfg.Boundary == "" {
		cfg.Boundary = BoundaryNone
	}
	return &Chunker{cfg: cfg}, nil
}

// ChunkID returns the deterministic chunk ID for a document and position.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s:%d", docID, index)
}

// Chunk splits text into ordered chunks covering every character of the
// source. Consecutive chunks of the same document share Overlap characters,
// except possibly the last. metadata is attached to every chunk as-is.
func (c *Chunker) Chunk(docID, text string, metadata map[string]interface{}) []*models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []*models.Chunk
	start := 0
	index := 0
	for start < len(runes) {
		end := start + c.cfg.Size
		if end >= len(runes) {
			end = len(runes)
		} else if c.cfg.Boundary == BoundarySentence {
			end = snapToSentence(runes, start, end)
		}
		chunks = append(chunks, &models.Chunk{
			ID:         ChunkID(docID, index),
			DocumentID: docID,
			Text:       string(runes[start:end]),
			Index:      index,
			Offset:     start,
			Overlaps:   index > 0 && c.cfg.Overlap > 0,
			Metadata:   metadata,
		})
		if end >= len(runes) {
			break
		}
		next := end - c.cfg.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
		index++
	}
	return chunks
}

// snapToSentence returns the cut position for the window runes[start:limit]:
// one past the last sentence terminator in the window, or limit when the
// window holds no terminator (hard cut).
func snapToSentence(runes []rune, start, limit int) int {
	for i := limit - 1; i > start; i-- {
		if isTerminator(runes[i]) {
			return i + 1
		}
	}
	return limit
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
