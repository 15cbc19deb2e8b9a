package rag

import (
	"context"
	"fmt"

	"github.com/askdocs/askdocs/internal/log"
)

// Retriever embeds a query and looks up the nearest chunks in the
// similarity index.
type Retriever struct {
	embedder Embedder
	index    SimilarityIndex
	logger   log.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder Embedder, index SimilarityIndex, logger log.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Search returns up to topK sources ranked best match first. An empty result
// is a valid outcome, not an error.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Source, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	// Preserve the index's rank order; score converts ascending distance to
	// descending similarity.
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, Source{
			FilePath: metadataOr(m.Metadata, "file_path", "unknown"),
			Section:  metadataOr(m.Metadata, "section", "unknown"),
			Text:     m.Text,
			Score:    1 - m.Distance,
		})
	}

	r.logger.Debug("retrieved sources", "query", query, "top_k", topK, "hits", len(sources))
	return sources, nil
}

func metadataOr(md map[string]string, key, fallback string) string {
	if v, ok := md[key]; ok && v != "" {
		return v
	}
	return fallback
}
