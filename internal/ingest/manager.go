// Package ingest coordinates document synchronization: chunking, embedding,
// and the atomic swap of a document's index records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/docid"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/index"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// ErrEmptyDocument is returned when a sync request carries no text content.
var ErrEmptyDocument = errors.New("document has no content")

// Manager keeps the document store and the embedding index in sync. Each
// document is synced under its own lock, so concurrent syncs of different
// documents proceed in parallel while two syncs of the same document
// serialize.
type Manager struct {
	store     storage.Storage
	idx       *index.Index
	embedder  llm.Embedder
	chunker   *chunker.Chunker
	extractor *extract.Extractor
	log       *zap.Logger

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

// NewManager creates a sync manager.
func NewManager(store storage.Storage, idx *index.Index, embedder llm.Embedder, ch *chunker.Chunker, log *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		idx:       idx,
		embedder:  embedder,
		chunker:   ch,
		extractor: extract.NewExtractor(),
		log:       log,
		docLocks:  make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(docID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.docLocks[docID]
	if !ok {
		l = &sync.Mutex{}
		m.docLocks[docID] = l
	}
	return l
}

// Sync creates or replaces a document and its index records. Re-syncing
// unchanged content is detected via the revision fingerprint and skipped, so
// Sync is idempotent. An empty input ID gets a generated one; the returned
// document carries the ID in effect.
func (m *Manager) Sync(ctx context.Context, input models.DocumentInput) (*models.Document, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrEmptyDocument
	}
	if input.ID == "" {
		input.ID = uuid.New().String()
	}

	l := m.lockFor(input.ID)
	l.Lock()
	defer l.Unlock()

	revision := docid.Revision(input.Content)
	now := time.Now().UTC()
	doc := &models.Document{
		ID:        input.ID,
		Name:      input.Name,
		Content:   input.Content,
		Revision:  revision,
		Metadata:  input.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := m.store.GetDocument(ctx, input.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load existing document: %w", err)
	}
	if existing != nil {
		if existing.Revision == revision {
			m.log.Debug("document unchanged, skipping sync", zap.String("doc_id", input.ID))
			return existing, nil
		}
		doc.CreatedAt = existing.CreatedAt
	}

	chunks := m.chunker.Chunk(input.ID, input.Content, chunkMetadata(input))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vecs, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document %s: %w", input.ID, err)
	}

	recs := make([]*models.EmbeddingRecord, len(chunks))
	for i, ch := range chunks {
		recs[i] = &models.EmbeddingRecord{
			ChunkID:    ch.ID,
			DocumentID: ch.DocumentID,
			ChunkIndex: ch.Index,
			Text:       ch.Text,
			Vector:     vecs[i],
			Metadata:   ch.Metadata,
			Revision:   revision,
		}
	}

	if err := m.idx.ReplaceDocument(ctx, input.ID, recs); err != nil {
		return nil, err
	}
	if err := m.store.PutDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist document %s: %w", input.ID, err)
	}
	m.log.Info("document synced",
		zap.String("doc_id", input.ID),
		zap.String("name", input.Name),
		zap.Int("chunks", len(recs)))
	return doc, nil
}

// Remove deletes a document and all of its index records. Removing an
// unknown document is a no-op.
func (m *Manager) Remove(ctx context.Context, docID string) error {
	l := m.lockFor(docID)
	l.Lock()
	defer l.Unlock()

	if err := m.idx.DeleteByDocument(ctx, docID); err != nil {
		return err
	}
	if err := m.store.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	m.log.Info("document removed", zap.String("doc_id", docID))
	return nil
}

// SyncFile extracts the text of the file at path and syncs it under a
// path-derived document ID, so repeated syncs of the same file replace
// rather than duplicate.
func (m *Manager) SyncFile(ctx context.Context, path string) (*models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}
	text, err := m.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", absPath, err)
	}
	return m.Sync(ctx, models.DocumentInput{
		ID:      docid.FromPath(absPath),
		Name:    filepath.Base(absPath),
		Content: text,
		Metadata: map[string]interface{}{
			"path": absPath,
		},
	})
}

// RemoveFile removes the document previously synced from path.
func (m *Manager) RemoveFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path %s: %w", path, err)
	}
	return m.Remove(ctx, docid.FromPath(absPath))
}

// SyncDirectory walks root and syncs every supported file found. Extraction
// or embedding failures for individual files are logged and skipped; the
// returned count is the number of files synced successfully.
func (m *Manager) SyncDirectory(ctx context.Context, root string) (int, error) {
	synced := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !extract.Supported(path) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := m.SyncFile(ctx, path); err != nil {
			if errors.Is(err, ErrEmptyDocument) {
				m.log.Debug("skipping empty file", zap.String("path", path))
				return nil
			}
			m.log.Warn("failed to sync file", zap.String("path", path), zap.Error(err))
			return nil
		}
		synced++
		return nil
	})
	if err != nil {
		return synced, fmt.Errorf("walk %s: %w", root, err)
	}
	return synced, nil
}

// chunkMetadata builds the metadata attached to each chunk. The document
// name rides along so answers can cite human-readable sources.
func chunkMetadata(input models.DocumentInput) map[string]interface{} {
	md := make(map[string]interface{}, len(input.Metadata)+1)
	for k, v := range input.Metadata {
		md[k] = v
	}
	if input.Name != "" {
		md["name"] = input.Name
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
