package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/askdocs/askdocs/internal/log"
)

func TestSearch_ConvertsMatchesToSources(t *testing.T) {
	index := &mockIndex{matches: []Match{
		{
			Text:     "chunk one",
			Metadata: map[string]string{"file_path": "guide.md", "section": "Setup"},
			Distance: 0.1,
		},
		{
			Text:     "chunk two",
			Metadata: map[string]string{"file_path": "faq.md", "section": "FAQ"},
			Distance: 0.4,
		},
	}}
	r := NewRetriever(&mockEmbedder{}, index, log.NewNop())

	sources, err := r.Search(context.Background(), "setup steps", 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if index.lastK != 5 {
		t.Errorf("index queried with k=%d, want 5", index.lastK)
	}

	// Score is 1-distance; the index's ascending-distance order must be
	// preserved, so scores descend.
	if sources[0].Score != 0.9 || sources[1].Score != 0.6 {
		t.Errorf("scores = %v, %v, want 0.9, 0.6", sources[0].Score, sources[1].Score)
	}
	if sources[0].Score <= sources[1].Score {
		t.Error("score order must invert distance order")
	}
	if sources[0].FilePath != "guide.md" || sources[0].Section != "Setup" {
		t.Errorf("sources[0] metadata = %q/%q", sources[0].FilePath, sources[0].Section)
	}
}

func TestSearch_MissingMetadataDefaultsToUnknown(t *testing.T) {
	index := &mockIndex{matches: []Match{{Text: "orphan chunk", Distance: 0.2}}}
	r := NewRetriever(&mockEmbedder{}, index, log.NewNop())

	sources, err := r.Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if sources[0].FilePath != "unknown" || sources[0].Section != "unknown" {
		t.Errorf("got %q/%q, want unknown/unknown", sources[0].FilePath, sources[0].Section)
	}
}

func TestSearch_EmptyResultIsNotAnError(t *testing.T) {
	r := NewRetriever(&mockEmbedder{}, &mockIndex{}, log.NewNop())

	sources, err := r.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("got %d sources, want 0", len(sources))
	}
}

func TestSearch_EmbedErrorPropagates(t *testing.T) {
	embedErr := errors.New("embedder offline")
	r := NewRetriever(&mockEmbedder{err: embedErr}, &mockIndex{}, log.NewNop())

	if _, err := r.Search(context.Background(), "q", 5); !errors.Is(err, embedErr) {
		t.Errorf("Search() error = %v, want wrapped embed error", err)
	}
}
