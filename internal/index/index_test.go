package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

func openTestIndex(t *testing.T, dim int) *Index {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	idx, err := Open(context.Background(), store, dim, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func rec(chunkID, docID string, vec ...float32) *models.EmbeddingRecord {
	return &models.EmbeddingRecord{
		ChunkID:    chunkID,
		DocumentID: docID,
		Text:       "text of " + chunkID,
		Vector:     vec,
		Revision:   "r1",
	}
}

func TestIndex_SearchEmpty(t *testing.T) {
	idx := openTestIndex(t, 2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("empty index search should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestIndex_UpsertAndSearch(t *testing.T) {
	idx := openTestIndex(t, 2)
	ctx := context.Background()

	if err := idx.Upsert(ctx, rec("a:0", "a", 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, rec("b:0", "b", 0, 1)); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "a:0" || results[0].DocumentID != "a" {
		t.Errorf("nearest should be a:0, got %+v", results[0])
	}
	if results[0].Distance > results[1].Distance {
		t.Error("results should be ordered ascending by distance")
	}
	if results[0].Text != "text of a:0" {
		t.Errorf("result should carry chunk text, got %q", results[0].Text)
	}
}

func TestIndex_UpsertIdempotent(t *testing.T) {
	idx := openTestIndex(t, 2)
	ctx := context.Background()
	r := rec("a:0", "a", 1, 0)
	_ = idx.Upsert(ctx, r)
	_ = idx.Upsert(ctx, r)
	if idx.Size() != 1 {
		t.Errorf("double upsert should keep one record, size=%d", idx.Size())
	}
}

func TestIndex_DeleteByDocument(t *testing.T) {
	idx := openTestIndex(t, 2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, rec("a:0", "a", 1, 0))
	_ = idx.Upsert(ctx, rec("a:1", "a", 0.9, 0.1))
	_ = idx.Upsert(ctx, rec("b:0", "b", 0, 1))

	if err := idx.DeleteByDocument(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 10)
	for _, r := range results {
		if r.DocumentID == "a" {
			t.Errorf("deleted document still retrievable: %+v", r)
		}
	}
	if idx.Size() != 1 {
		t.Errorf("size=%d after delete, want 1", idx.Size())
	}
	// Deleting a missing document is a no-op.
	if err := idx.DeleteByDocument(ctx, "missing"); err != nil {
		t.Errorf("delete of unknown document should be a no-op: %v", err)
	}
}

func TestIndex_ReplaceDocument(t *testing.T) {
	idx := openTestIndex(t, 2)
	ctx := context.Background()
	_ = idx.ReplaceDocument(ctx, "a", []*models.EmbeddingRecord{
		rec("a:0", "a", 1, 0),
		rec("a:1", "a", 0.8, 0.2),
		rec("a:2", "a", 0.5, 0.5),
	})
	// Re-ingestion with fewer chunks leaves no stale records behind.
	if err := idx.ReplaceDocument(ctx, "a", []*models.EmbeddingRecord{
		rec("a:0", "a", 0, 1),
	}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Fatalf("expected 1 record after replace, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 10)
	if len(results) != 1 || results[0].ChunkID != "a:0" {
		t.Errorf("unexpected results after replace: %+v", results)
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("vector should be the replacement, distance=%v", results[0].Distance)
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx := openTestIndex(t, 3)
	ctx := context.Background()
	if err := idx.Upsert(ctx, rec("a:0", "a", 1, 0)); err == nil {
		t.Error("upsert with wrong dimension should fail")
	}
	if err := idx.ReplaceDocument(ctx, "a", []*models.EmbeddingRecord{rec("a:0", "a", 1)}); err == nil {
		t.Error("replace with wrong dimension should fail")
	}
}

func TestIndex_ReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	ctx := context.Background()

	store1, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	idx1, err := Open(ctx, store1, 2, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	r := rec("a:0", "a", 0.25, -0.75)
	r.Metadata = map[string]interface{}{"name": "a.txt"}
	_ = idx1.Upsert(ctx, r)
	_ = idx1.Close()

	store2, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	idx2, err := Open(ctx, store2, 2, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	defer idx2.Close()

	if idx2.Size() != 1 {
		t.Fatalf("reloaded index size=%d, want 1", idx2.Size())
	}
	results, _ := idx2.Search(ctx, []float32{0.25, -0.75}, 1)
	if len(results) != 1 {
		t.Fatal("expected the persisted record after reload")
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("reloaded vector differs: distance=%v", results[0].Distance)
	}
	if results[0].Metadata["name"] != "a.txt" {
		t.Errorf("metadata lost across reload: %v", results[0].Metadata)
	}
}
