// Package llm provides the embedding and generation capabilities as injected
// interfaces, with HTTP clients for Ollama-compatible model servers.
package llm

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable marks embedding capability failures. Ingestion
// aborts without partial index mutation; queries surface an infrastructure
// error instead of guessing.
var ErrEmbeddingUnavailable = errors.New("embedding capability unavailable")

// ErrGenerationUnavailable marks generation capability failures after
// grounding succeeded. The caller reports a distinct "answer unavailable"
// outcome, never an ungrounded guess.
var ErrGenerationUnavailable = errors.New("generation capability unavailable")

// Embedder produces fixed-dimension vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Generator produces answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
