package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/askdocs/askdocs/internal/rag"
)

// Embedder implements rag.Embedder on a Genkit embedder.
// Safe for concurrent use.
type Embedder struct {
	embedder ai.Embedder

	// options is passed through to every embed call. For Gemini this carries
	// the output dimensionality so vectors match the store's schema; other
	// providers take nil.
	options any
}

var _ rag.Embedder = (*Embedder)(nil)

// NewEmbedder creates an Embedder. options may be nil.
func NewEmbedder(embedder ai.Embedder, options any) (*Embedder, error) {
	if embedder == nil {
		return nil, errors.New("genkit embedder is required")
	}
	return &Embedder{embedder: embedder, options: options}, nil
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request. The result is aligned with the
// input: vectors[i] embeds texts[i].
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: e.options,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for text %d", i)
		}
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}
