// Package answer decides between refusal and generation, and builds grounded
// answers with cited sources.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

// RefusalText is the canonical not-found answer. It is returned verbatim
// whenever no evidence passes the distance filter, without any model call.
const RefusalText = "I'm not sure based on your materials."

// UnavailableText is returned when grounding succeeded but the generation
// capability failed or timed out.
const UnavailableText = "I found relevant material but couldn't generate an answer right now. Please try again."

// promptTemplate guards the model: it may answer only from the supplied
// context block.
const promptTemplate = `You are a helpful study assistant.

Answer the question ONLY using the context provided below.
If the answer is not present in the context, say:
"%s"

Context:
%s

Question:
%s

Answer:
`

// Synthesizer is a two-state machine: REFUSE when retrieval found no
// evidence, GENERATE otherwise. The refusal path never invokes the
// generation capability, so an empty corpus can never produce an
// unsupported answer.
type Synthesizer struct {
	generator llm.Generator
	timeout   time.Duration
}

// NewSynthesizer creates a synthesizer. timeout bounds each generation call;
// zero means no additional deadline beyond the caller's context.
func NewSynthesizer(generator llm.Generator, timeout time.Duration) *Synthesizer {
	return &Synthesizer{generator: generator, timeout: timeout}
}

// Synthesize produces the Answer for question given the filtered retrieval
// results (ordered ascending by distance). Empty results yield the canonical
// refusal. Generation failure yields a distinct generation_failed Answer,
// never a silent ungrounded guess.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, results []*models.RetrievalResult) *models.Answer {
	if len(results) == 0 {
		return &models.Answer{
			Text:     RefusalText,
			Grounded: false,
			Status:   models.StatusNotFound,
			Sources:  []models.Source{},
		}
	}

	prompt := buildPrompt(question, results)

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	text, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		return &models.Answer{
			Text:     UnavailableText,
			Grounded: false,
			Status:   models.StatusGenerationFailed,
			Sources:  []models.Source{},
		}
	}

	return &models.Answer{
		Text:     strings.TrimSpace(text),
		Grounded: true,
		Status:   models.StatusGrounded,
		Sources:  collectSources(results),
	}
}

// buildPrompt assembles the guarded prompt with the most relevant chunks
// first.
func buildPrompt(question string, results []*models.RetrievalResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	contextBlock := strings.Join(texts, "\n\n")
	return fmt.Sprintf(promptTemplate, RefusalText, contextBlock, question)
}

// collectSources returns one citation per source document, deduplicated,
// preserving first-seen (most relevant) order.
func collectSources(results []*models.RetrievalResult) []models.Source {
	seen := make(map[string]bool, len(results))
	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		if seen[r.DocumentID] {
			continue
		}
		seen[r.DocumentID] = true
		sources = append(sources, models.Source{
			Document: documentName(r),
			Location: r.ChunkID,
		})
	}
	return sources
}

// documentName prefers the human-readable name carried in chunk metadata,
// falling back to the document ID.
func documentName(r *models.RetrievalResult) string {
	if r.Metadata != nil {
		if name, ok := r.Metadata["name"].(string); ok && name != "" {
			return name
		}
	}
	return r.DocumentID
}
