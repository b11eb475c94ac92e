package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

func TestSynthesize_RefusesWithoutEvidence(t *testing.T) {
	gen := &llm.MockGenerator{Response: "should not be called"}
	s := NewSynthesizer(gen, time.Second)

	ans := s.Synthesize(context.Background(), "what is the capital of Japan?", nil)
	if ans.Grounded {
		t.Error("answer without evidence must not be grounded")
	}
	if ans.Status != models.StatusNotFound {
		t.Errorf("status = %q", ans.Status)
	}
	if ans.Text != RefusalText {
		t.Errorf("refusal text = %q", ans.Text)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("refusal must carry no sources, got %v", ans.Sources)
	}
	if len(gen.Prompts) != 0 {
		t.Error("generator must not be invoked on the refusal path")
	}
}

func TestSynthesize_GroundedAnswerCitesSources(t *testing.T) {
	gen := &llm.MockGenerator{Response: "Paris."}
	s := NewSynthesizer(gen, time.Second)
	results := []*models.RetrievalResult{
		{ChunkID: "doc-a:0", DocumentID: "doc-a", Distance: 0.1, Text: "The capital of France is Paris.", Metadata: map[string]interface{}{"name": "geography.txt"}},
		{ChunkID: "doc-a:1", DocumentID: "doc-a", Distance: 0.3, Text: "France is in Europe.", Metadata: map[string]interface{}{"name": "geography.txt"}},
		{ChunkID: "doc-b:0", DocumentID: "doc-b", Distance: 0.5, Text: "Paris hosts the Louvre."},
	}

	ans := s.Synthesize(context.Background(), "what is the capital of France?", results)
	if !ans.Grounded || ans.Status != models.StatusGrounded {
		t.Fatalf("grounded = %v, status = %q", ans.Grounded, ans.Status)
	}
	if ans.Text != "Paris." {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("expected one source per document, got %v", ans.Sources)
	}
	if ans.Sources[0].Document != "geography.txt" || ans.Sources[0].Location != "doc-a:0" {
		t.Errorf("first source = %+v", ans.Sources[0])
	}
	if ans.Sources[1].Document != "doc-b" {
		t.Errorf("second source should fall back to document ID, got %+v", ans.Sources[1])
	}
}

func TestSynthesize_PromptContainsOnlyRetrievedContext(t *testing.T) {
	gen := &llm.MockGenerator{Response: "ok"}
	s := NewSynthesizer(gen, time.Second)
	results := []*models.RetrievalResult{
		{ChunkID: "d:0", DocumentID: "d", Text: "alpha beta"},
		{ChunkID: "d:1", DocumentID: "d", Text: "gamma delta"},
	}

	s.Synthesize(context.Background(), "which letters?", results)
	if len(gen.Prompts) != 1 {
		t.Fatalf("expected one generation call, got %d", len(gen.Prompts))
	}
	prompt := gen.Prompts[0]
	for _, want := range []string{"alpha beta", "gamma delta", "which letters?", RefusalText} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Index(prompt, "alpha beta") > strings.Index(prompt, "gamma delta") {
		t.Error("context should keep ascending-distance order")
	}
}

func TestSynthesize_GenerationFailure(t *testing.T) {
	gen := &llm.MockGenerator{Err: errors.New("model down")}
	s := NewSynthesizer(gen, time.Second)
	results := []*models.RetrievalResult{
		{ChunkID: "d:0", DocumentID: "d", Text: "evidence"},
	}

	ans := s.Synthesize(context.Background(), "q", results)
	if ans.Grounded {
		t.Error("failed generation must not report grounded")
	}
	if ans.Status != models.StatusGenerationFailed {
		t.Errorf("status = %q", ans.Status)
	}
	if ans.Text == RefusalText {
		t.Error("generation failure must be distinguishable from not-found")
	}
	if len(ans.Sources) != 0 {
		t.Errorf("failed answer must carry no sources, got %v", ans.Sources)
	}
}
