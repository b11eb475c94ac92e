// Package index provides the embedding index: persistent storage of chunk
// vectors plus an in-memory similarity search structure rebuilt on open.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// ErrUnavailable marks failures reaching the backing store. Callers surface
// these as infrastructure errors, distinct from a valid empty result.
var ErrUnavailable = errors.New("index unavailable")

// Index maps chunk IDs to embedding vectors and supports similarity search.
// Vectors are persisted in storage and mirrored in memory; Open rebuilds the
// mirror so a reload is indistinguishable from never having restarted.
//
// Reads run fully concurrently. ReplaceDocument swaps a document's records
// under the write lock, so a concurrent search observes either the old or
// the new state of that document, never a half-applied mix.
type Index struct {
	store storage.Storage
	dim   int

	mu        sync.RWMutex
	vectors   *vector.Store
	records   map[string]*models.EmbeddingRecord
	docChunks map[string]map[string]struct{} // reverse map: document ID -> live chunk IDs
}

// Open loads all persisted embedding records into memory, creating the
// backing tables if needed. dim is the fixed embedding dimension.
func Open(ctx context.Context, store storage.Storage, dim int, metric vector.Metric) (*Index, error) {
	vecs, err := vector.NewStore(dim, metric)
	if err != nil {
		return nil, err
	}
	idx := &Index{
		store:     store,
		dim:       dim,
		vectors:   vecs,
		records:   make(map[string]*models.EmbeddingRecord),
		docChunks: make(map[string]map[string]struct{}),
	}
	recs, err := store.LoadEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load embeddings: %v", ErrUnavailable, err)
	}
	for _, rec := range recs {
		if len(rec.Vector) != dim {
			return nil, fmt.Errorf("persisted vector for %s has dimension %d, index expects %d",
				rec.ChunkID, len(rec.Vector), dim)
		}
		if err := idx.vectors.Upsert(rec.ChunkID, rec.Vector); err != nil {
			return nil, err
		}
		idx.track(rec)
	}
	return idx, nil
}

// track records rec in the in-memory maps. Caller holds the write lock (or
// has exclusive access during Open).
func (idx *Index) track(rec *models.EmbeddingRecord) {
	idx.records[rec.ChunkID] = rec
	chunks, ok := idx.docChunks[rec.DocumentID]
	if !ok {
		chunks = make(map[string]struct{})
		idx.docChunks[rec.DocumentID] = chunks
	}
	chunks[rec.ChunkID] = struct{}{}
}

// Upsert inserts or replaces the record for rec.ChunkID. Re-upserting an
// identical record is a no-op in effect.
func (idx *Index) Upsert(ctx context.Context, rec *models.EmbeddingRecord) error {
	if len(rec.Vector) != idx.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(rec.Vector), idx.dim)
	}
	if err := idx.store.UpsertEmbedding(ctx, rec); err != nil {
		return fmt.Errorf("%w: upsert %s: %v", ErrUnavailable, rec.ChunkID, err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.vectors.Upsert(rec.ChunkID, rec.Vector); err != nil {
		return err
	}
	if old, ok := idx.records[rec.ChunkID]; ok && old.DocumentID != rec.DocumentID {
		delete(idx.docChunks[old.DocumentID], rec.ChunkID)
	}
	idx.track(rec)
	return nil
}

// DeleteByDocument removes every record belonging to docID, leaving no
// orphans. Deleting an unknown document is a no-op.
func (idx *Index) DeleteByDocument(ctx context.Context, docID string) error {
	if err := idx.store.DeleteEmbeddingsByDocument(ctx, docID); err != nil {
		return fmt.Errorf("%w: delete document %s: %v", ErrUnavailable, docID, err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dropDocumentLocked(docID)
	return nil
}

func (idx *Index) dropDocumentLocked(docID string) {
	chunks := idx.docChunks[docID]
	if len(chunks) > 0 {
		ids := make([]string, 0, len(chunks))
		for id := range chunks {
			ids = append(ids, id)
			delete(idx.records, id)
		}
		idx.vectors.Remove(ids)
	}
	delete(idx.docChunks, docID)
}

// ReplaceDocument atomically replaces all records for docID with recs: the
// persistent swap runs in one transaction, and the in-memory swap happens
// under the write lock so no search sees a deleted old chunk alongside a
// missing new one.
func (idx *Index) ReplaceDocument(ctx context.Context, docID string, recs []*models.EmbeddingRecord) error {
	for _, rec := range recs {
		if len(rec.Vector) != idx.dim {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d",
				rec.ChunkID, len(rec.Vector), idx.dim)
		}
	}
	if err := idx.store.ReplaceEmbeddings(ctx, docID, recs); err != nil {
		return fmt.Errorf("%w: replace document %s: %v", ErrUnavailable, docID, err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dropDocumentLocked(docID)
	for _, rec := range recs {
		if err := idx.vectors.Upsert(rec.ChunkID, rec.Vector); err != nil {
			return err
		}
		idx.track(rec)
	}
	return nil
}

// Search returns the topK nearest chunks to query, ordered ascending by
// distance with ties broken by chunk ID. An empty index returns an empty
// result and no error.
func (idx *Index) Search(ctx context.Context, query []float32, topK int) ([]*models.RetrievalResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	hits, err := idx.vectors.Search(query, topK)
	if err != nil {
		return nil, err
	}
	results := make([]*models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		rec, ok := idx.records[hit.ChunkID]
		if !ok {
			continue
		}
		results = append(results, &models.RetrievalResult{
			ChunkID:    rec.ChunkID,
			DocumentID: rec.DocumentID,
			Distance:   hit.Distance,
			Text:       rec.Text,
			Metadata:   rec.Metadata,
		})
	}
	return results, nil
}

// Size returns the number of live embedding records.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Dimensions returns the fixed embedding dimension.
func (idx *Index) Dimensions() int {
	return idx.dim
}

// Close releases the backing store.
func (idx *Index) Close() error {
	return idx.store.Close()
}
