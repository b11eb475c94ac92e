package models

// RetrievalResult is a single retrieved chunk with its distance to the query.
// Result sequences are ordered ascending by distance (most relevant first),
// ties broken by chunk ID for determinism.
type RetrievalResult struct {
	ChunkID    string                 `json:"chunk_id"`
	DocumentID string                 `json:"document_id"`
	Distance   float64                `json:"distance"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// AnswerStatus describes the outcome of answering a question.
type AnswerStatus string

const (
	// StatusGrounded means the answer was generated from retrieved evidence.
	StatusGrounded AnswerStatus = "grounded"
	// StatusNotFound means no evidence passed the distance filter; the answer
	// is the canonical refusal and no generation call was made.
	StatusNotFound AnswerStatus = "not_found"
	// StatusGenerationFailed means grounding succeeded but the generation
	// capability failed or timed out.
	StatusGenerationFailed AnswerStatus = "generation_failed"
)

// Source identifies a cited document and the location of the supporting chunk.
type Source struct {
	Document string `json:"document"`
	Location string `json:"location"`
}

// Answer is the response to a question. Sources is empty iff Grounded is false.
type Answer struct {
	Text     string       `json:"answer"`
	Grounded bool         `json:"grounded"`
	Status   AnswerStatus `json:"status"`
	Sources  []Source     `json:"sources"`
}

// QuestionInput is the request body for the ask endpoint.
type QuestionInput struct {
	Question string `json:"question"`
}
