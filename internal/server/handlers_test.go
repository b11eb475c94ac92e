package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/index"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

const testDims = 64

func newTestServer(t *testing.T, gen llm.Generator) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.Dimensions = testDims
	cfg.Chunking = config.ChunkingConfig{Size: 60, Overlap: 0, Boundary: "sentence"}
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "kotae.db")

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := index.Open(context.Background(), store, testDims, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	embedder := llm.NewMockEmbedder(testDims)
	ch, err := chunker.New(cfg.Chunking.ChunkerConfig())
	if err != nil {
		t.Fatal(err)
	}
	logger := zap.NewNop()
	manager := ingest.NewManager(store, idx, embedder, ch, logger)
	// Tight threshold so unrelated questions fall outside the evidence cutoff
	// under the token-overlap mock embedder.
	retriever := retrieval.NewRetriever(embedder, idx, cfg.Retrieval.TopK, 0.6)
	synth := answer.NewSynthesizer(gen, 5*time.Second)
	return NewServer(retriever, synth, manager, idx, store, cfg, logger)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIngestAndAsk(t *testing.T) {
	srv := newTestServer(t, &llm.MockGenerator{Response: "Paris."})
	h := srv.Router()

	rec := doRequest(t, h, http.MethodPost, "/api/v1/documents", models.DocumentInput{
		ID:      "doc-a",
		Name:    "geography.txt",
		Content: "The capital of France is Paris. It has a population of over 2 million.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d: %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/ask", models.QuestionInput{
		Question: "What is the capital of France?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ask status = %d: %s", rec.Code, rec.Body)
	}
	var ans models.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatal(err)
	}
	if !ans.Grounded || ans.Status != models.StatusGrounded {
		t.Errorf("answer = %+v", ans)
	}
	if len(ans.Sources) == 0 || ans.Sources[0].Document != "geography.txt" {
		t.Errorf("sources = %v", ans.Sources)
	}
}

func TestAsk_UnrelatedQuestionRefuses(t *testing.T) {
	srv := newTestServer(t, &llm.MockGenerator{Response: "should not run"})
	h := srv.Router()

	doRequest(t, h, http.MethodPost, "/api/v1/documents", models.DocumentInput{
		ID:      "doc-a",
		Content: "The capital of France is Paris.",
	})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/ask", models.QuestionInput{
		Question: "How do penguins migrate during the antarctic winter?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ask status = %d: %s", rec.Code, rec.Body)
	}
	var ans models.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatal(err)
	}
	if ans.Grounded {
		t.Error("unrelated question must not be grounded")
	}
	if ans.Text != answer.RefusalText {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("refusal carried sources: %v", ans.Sources)
	}
}

func TestAsk_EmptyQuestionRejected(t *testing.T) {
	srv := newTestServer(t, &llm.MockGenerator{})
	rec := doRequest(t, srv.Router(), http.MethodPost, "/api/v1/ask", models.QuestionInput{Question: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngest_EmptyContentRejected(t *testing.T) {
	srv := newTestServer(t, &llm.MockGenerator{})
	rec := doRequest(t, srv.Router(), http.MethodPost, "/api/v1/documents", models.DocumentInput{ID: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestGetAndDeleteDocument(t *testing.T) {
	srv := newTestServer(t, &llm.MockGenerator{})
	h := srv.Router()

	doRequest(t, h, http.MethodPost, "/api/v1/documents", models.DocumentInput{
		ID: "doc-a", Name: "a.txt", Content: "some content worth storing",
	})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/documents/doc-a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var doc models.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Name != "a.txt" {
		t.Errorf("doc = %+v", doc)
	}

	if rec = doRequest(t, h, http.MethodDelete, "/api/v1/documents/doc-a", nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec = doRequest(t, h, http.MethodGet, "/api/v1/documents/doc-a", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestAsk_GenerationFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, &llm.MockGenerator{Err: llm.ErrGenerationUnavailable})
	h := srv.Router()

	doRequest(t, h, http.MethodPost, "/api/v1/documents", models.DocumentInput{
		ID: "doc-a", Content: "The capital of France is Paris.",
	})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/ask", models.QuestionInput{
		Question: "What is the capital of France?",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var ans models.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.StatusGenerationFailed || ans.Grounded {
		t.Errorf("answer = %+v", ans)
	}
}

func TestStatusAndHealth(t *testing.T) {
	srv := newTestServer(t, &llm.MockGenerator{})
	h := srv.Router()

	doRequest(t, h, http.MethodPost, "/api/v1/documents", models.DocumentInput{
		ID: "doc-a", Content: "content for counting purposes",
	})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["documents"].(float64) != 1 {
		t.Errorf("documents = %v", body["documents"])
	}
	if body["index_size"].(float64) < 1 {
		t.Errorf("index_size = %v", body["index_size"])
	}

	if rec = doRequest(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}
