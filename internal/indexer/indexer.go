// Package indexer walks a documentation tree, chunks markdown files, embeds
// the chunks, and upserts them into the similarity index.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/askdocs/askdocs/internal/chunker"
	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
)

// Store defines the storage operations the Indexer needs. Defined by the
// consumer (like io.Reader); store.Store satisfies it.
type Store interface {
	Upsert(ctx context.Context, entries []rag.IndexEntry) error
	DeleteByFilePath(ctx context.Context, filePath string) (int64, error)
	Reset(ctx context.Context) error
}

// Result summarizes one indexing run.
type Result struct {
	FilesIndexed int
	FilesSkipped int // no chunks survived segmentation
	FilesFailed  int
	Chunks       int
	Duration     time.Duration
}

// Indexer chunks, embeds, and stores markdown documentation.
type Indexer struct {
	segmenter *chunker.Segmenter
	embedder  rag.Embedder
	store     Store
	logger    log.Logger
}

// New creates an Indexer.
func New(segmenter *chunker.Segmenter, embedder rag.Embedder, store Store, logger log.Logger) *Indexer {
	return &Indexer{
		segmenter: segmenter,
		embedder:  embedder,
		store:     store,
		logger:    logger,
	}
}

// Reset removes every stored chunk. Used by full re-indexing.
func (idx *Indexer) Reset(ctx context.Context) error {
	return idx.store.Reset(ctx)
}

// IndexDir walks root for markdown files and indexes each one. A file that
// fails to index is counted and logged, not fatal; the walk continues.
func (idx *Indexer) IndexDir(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		n, ferr := idx.IndexFile(ctx, path, root)
		switch {
		case ferr != nil:
			result.FilesFailed++
			idx.logger.Error("failed to index file", "file", path, "error", ferr)
		case n == 0:
			result.FilesSkipped++
		default:
			result.FilesIndexed++
			result.Chunks += n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	result.Duration = time.Since(start)
	idx.logger.Info("indexing complete",
		"files_indexed", result.FilesIndexed,
		"files_skipped", result.FilesSkipped,
		"files_failed", result.FilesFailed,
		"chunks", result.Chunks,
		"duration", result.Duration)

	return result, nil
}

// IndexFile chunks and stores one markdown file, returning the number of
// chunks written. Existing chunks for the file are deleted first so sections
// removed from the file don't linger in the index. Paths are stored relative
// to root when possible.
func (idx *Indexer) IndexFile(ctx context.Context, path, root string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	relPath := path
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil {
			relPath = filepath.ToSlash(rel)
		}
	}

	chunks := idx.segmenter.Segment(string(content), relPath)

	if _, err := idx.store.DeleteByFilePath(ctx, relPath); err != nil {
		return 0, fmt.Errorf("clearing stale chunks: %w", err)
	}
	if len(chunks) == 0 {
		idx.logger.Debug("no chunks survived segmentation", "file", relPath)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	entries := make([]rag.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = rag.IndexEntry{
			ID:     c.ID,
			Text:   c.Text,
			Vector: vectors[i],
			Metadata: map[string]string{
				"file_path":   c.FilePath,
				"section":     c.Section,
				"chunk_index": fmt.Sprintf("%d", c.ChunkIndex),
			},
		}
	}

	if err := idx.store.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}

	idx.logger.Debug("indexed file", "file", relPath, "chunks", len(entries))
	return len(entries), nil
}
