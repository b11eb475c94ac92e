// Package retrieval turns a question into a bounded set of grounded chunks.
package retrieval

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

// Searcher is the similarity-search capability the retriever depends on.
type Searcher interface {
	Search(ctx context.Context, query []float32, topK int) ([]*models.RetrievalResult, error)
}

// Retriever embeds a question, searches the index, and filters candidates by
// semantic distance. The filter is the hallucination suppressor: a candidate
// farther than the threshold is never treated as evidence. Widening the
// threshold only ever admits more candidates for a fixed query and index
// state; it never reorders or drops previously accepted ones.
type Retriever struct {
	embedder  llm.Embedder
	searcher  Searcher
	topK      int
	threshold float64
}

// NewRetriever creates a retriever with the given candidate budget and
// distance threshold.
func NewRetriever(embedder llm.Embedder, searcher Searcher, topK int, threshold float64) *Retriever {
	return &Retriever{
		embedder:  embedder,
		searcher:  searcher,
		topK:      topK,
		threshold: threshold,
	}
}

// Retrieve returns the filtered candidates for question, ordered ascending
// by distance, and whether any evidence survived the filter. A topK of zero
// is never grounded. Errors are infrastructure failures (embedding or index),
// never a lack of evidence.
func (r *Retriever) Retrieve(ctx context.Context, question string) (grounded bool, results []*models.RetrievalResult, err error) {
	if r.topK <= 0 {
		return false, nil, nil
	}
	queryVec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return false, nil, fmt.Errorf("embed question: %w", err)
	}
	candidates, err := r.searcher.Search(ctx, queryVec, r.topK)
	if err != nil {
		return false, nil, fmt.Errorf("search index: %w", err)
	}
	results = make([]*models.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Distance > r.threshold {
			continue
		}
		results = append(results, c)
	}
	return len(results) > 0, results, nil
}
