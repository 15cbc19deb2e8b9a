package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/askdocs/askdocs/internal/app"
	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/log"
)

// runIndex chunks, embeds, and stores the markdown docs tree. Concurrent
// runs would race on per-file delete-then-upsert, so a file lock allows
// only one indexing process at a time.
func runIndex(cfg *config.Config, logger log.Logger, args []string) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	docs := fs.String("docs", "", "docs directory (overrides config)")
	reset := fs.Bool("reset", false, "clear the index before indexing")
	watch := fs.Bool("watch", false, "keep watching for file changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	root := cfg.DocsPath
	if *docs != "" {
		root = *docs
	}
	if root == "" {
		return fmt.Errorf("no docs directory configured, set docs_path or pass --docs")
	}

	lock := flock.New(filepath.Join(os.TempDir(), "askdocs-index.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring index lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another indexing run is in progress")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("releasing index lock", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if *reset {
		logger.Info("clearing the index")
		if err := a.Indexer.Reset(ctx); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}
	}

	result, err := a.Indexer.IndexDir(ctx, root)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", root, err)
	}

	fmt.Printf("Indexed %d files (%d chunks) in %s\n",
		result.FilesIndexed, result.Chunks, result.Duration.Round(time.Millisecond))
	if result.FilesSkipped > 0 {
		fmt.Printf("Skipped %d files with no indexable sections\n", result.FilesSkipped)
	}
	if result.FilesFailed > 0 {
		fmt.Printf("Failed to index %d files, see logs\n", result.FilesFailed)
	}

	if *watch {
		fmt.Printf("Watching %s for changes, Ctrl+C to stop\n", root)
		return a.Indexer.Watch(ctx, root)
	}
	return nil
}
