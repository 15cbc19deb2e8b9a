package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// mockAIEmbedder implements ai.Embedder for testing.
type mockAIEmbedder struct {
	callCount  int
	lastInputs []string
	dimension  int
	err        error
	short      bool // return fewer vectors than inputs
}

func (m *mockAIEmbedder) Name() string            { return "mock/embedder" }
func (m *mockAIEmbedder) Register(_ api.Registry) {}

func (m *mockAIEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.lastInputs = nil
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			m.lastInputs = append(m.lastInputs, doc.Content[0].Text)
		}
	}
	if m.err != nil {
		return nil, m.err
	}

	n := len(req.Input)
	if m.short {
		n--
	}
	resp := &ai.EmbedResponse{}
	for range n {
		vec := make([]float32, m.dimension)
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

func TestEmbedBatch_AlignedVectors(t *testing.T) {
	mock := &mockAIEmbedder{dimension: 4}
	e, err := NewEmbedder(mock, nil)
	if err != nil {
		t.Fatalf("NewEmbedder() error: %v", err)
	}

	vectors, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	if mock.callCount != 1 {
		t.Errorf("embedder called %d times, want 1 (single batched request)", mock.callCount)
	}
	if len(mock.lastInputs) != 3 || mock.lastInputs[1] != "two" {
		t.Errorf("inputs = %v", mock.lastInputs)
	}
}

func TestEmbed_SingleText(t *testing.T) {
	mock := &mockAIEmbedder{dimension: 4}
	e, _ := NewEmbedder(mock, nil)

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("vector length = %d, want 4", len(vec))
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	mock := &mockAIEmbedder{dimension: 4}
	e, _ := NewEmbedder(mock, nil)

	vectors, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil) error: %v", err)
	}
	if vectors != nil {
		t.Errorf("EmbedBatch(nil) = %v, want nil", vectors)
	}
	if mock.callCount != 0 {
		t.Error("embedder should not be called for empty input")
	}
}

func TestEmbedBatch_MisalignedResponse(t *testing.T) {
	mock := &mockAIEmbedder{dimension: 4, short: true}
	e, _ := NewEmbedder(mock, nil)

	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("EmbedBatch() should fail when vector count mismatches input count")
	}
}

func TestEmbedBatch_ErrorPropagates(t *testing.T) {
	embErr := errors.New("upstream down")
	mock := &mockAIEmbedder{err: embErr}
	e, _ := NewEmbedder(mock, nil)

	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); !errors.Is(err, embErr) {
		t.Errorf("EmbedBatch() error = %v, want wrapped upstream error", err)
	}
}

func TestEmbedBatch_EmptyVectorRejected(t *testing.T) {
	mock := &mockAIEmbedder{dimension: 0}
	e, _ := NewEmbedder(mock, nil)

	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Error("EmbedBatch() should reject empty embedding vectors")
	}
}
