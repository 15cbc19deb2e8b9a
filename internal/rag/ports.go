package rag

import "context"

// Embedder converts text into dense vectors. Implementations must be
// deterministic for identical input within one model version and safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexEntry is one document to upsert into the similarity index.
// Re-adding an existing ID overwrites, never duplicates.
type IndexEntry struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// Match is one similarity query hit. Results are aligned by position and
// ordered by ascending distance (best match first).
type Match struct {
	Text     string
	Metadata map[string]string
	Distance float64
}

// SimilarityIndex is the vector store contract. Implementations must be safe
// for concurrent use.
type SimilarityIndex interface {
	Upsert(ctx context.Context, entries []IndexEntry) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Count(ctx context.Context) (int64, error)
}

// GenerateRequest carries one LLM call. Model is the provider-qualified model
// name; System is the system instruction; Messages are role-tagged turns in
// chronological order.
type GenerateRequest struct {
	Model       string
	System      string
	Messages    []Turn
	MaxTokens   int
	Temperature float32
}

// GenerateResponse exposes zero or more text parts. Non-text content
// (reasoning segments and the like) never appears here.
type GenerateResponse struct {
	Parts []string
}

// Text joins all text parts with newlines. Returns "" when the response
// carried no text.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Parts) == 0 {
		return ""
	}
	out := r.Parts[0]
	for _, p := range r.Parts[1:] {
		out += "\n" + p
	}
	return out
}

// Generator is the LLM contract. GenerateStream delivers the same content as
// Generate, fragment by fragment; the callback returning an error or the
// context being cancelled must abort the upstream call promptly.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	GenerateStream(ctx context.Context, req GenerateRequest, fn func(delta string) error) (*GenerateResponse, error)
}
