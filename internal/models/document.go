// Package models defines core data structures for documents, chunks, and answers.
package models

import "time"

// Document represents a source document in the corpus. Documents are mutated
// only by full re-ingestion; the Revision marker changes whenever the content does.
type Document struct {
	ID        string                 `json:"id" db:"id"`
	Name      string                 `json:"name" db:"name"`
	Content   string                 `json:"content" db:"content"`
	Revision  string                 `json:"revision" db:"revision"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// Chunk is a contiguous span of a document's text, the unit of embedding and
// retrieval. The ID is a deterministic function of the document ID and the
// chunk position, so re-chunking identical content yields identical IDs.
type Chunk struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Text       string                 `json:"text"`
	Index      int                    `json:"index"`
	Offset     int                    `json:"offset"`
	Overlaps   bool                   `json:"overlaps,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// EmbeddingRecord maps a chunk to its embedding vector. One record exists per
// live chunk; all vectors in an index share the same dimension.
type EmbeddingRecord struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Text       string
	Vector     []float32
	Metadata   map[string]interface{}
	Revision   string
}

// DocumentInput is the ingestion request body for creating or replacing a document.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Name     string                 `json:"name,omitempty"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
