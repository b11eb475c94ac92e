// Package storage defines persistence for documents and embedding records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned by GetDocument for an unknown document ID.
var ErrNotFound = errors.New("document not found")

// Storage persists documents and embedding records. The embeddings table is
// the durable copy of the index: reloading it must reproduce the in-memory
// index exactly (vectors and metadata byte-identical).
type Storage interface {
	// Document operations
	PutDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int64, error)

	// Embedding record operations
	UpsertEmbedding(ctx context.Context, rec *models.EmbeddingRecord) error
	ReplaceEmbeddings(ctx context.Context, docID string, recs []*models.EmbeddingRecord) error
	DeleteEmbeddingsByDocument(ctx context.Context, docID string) error
	LoadEmbeddings(ctx context.Context) ([]*models.EmbeddingRecord, error)
	CountEmbeddings(ctx context.Context) (int64, error)

	Close() error
}
