package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval batches rapid filesystem events (editors often emit
// several writes per save) into one re-index per file.
const debounceInterval = 500 * time.Millisecond

// Watch re-indexes markdown files under root as they change, until ctx is
// cancelled. New subdirectories are picked up as they appear; removed or
// renamed files have their chunks deleted.
func (idx *Indexer) Watch(ctx context.Context, root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addDirs(watcher, root); err != nil {
		return err
	}
	idx.logger.Info("watching for documentation changes", "path", root)

	// pending collects changed paths until the debounce timer fires.
	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(debounceInterval)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				// Watch directories created after startup.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirs(watcher, ev.Name); err != nil {
						idx.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".md") {
				continue
			}
			pending[ev.Name] |= ev.Op
			timer.Reset(debounceInterval)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			idx.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			for path, op := range pending {
				idx.handleChange(ctx, path, root, op)
			}
			clear(pending)
		}
	}
}

func (idx *Indexer) handleChange(ctx context.Context, path, root string, op fsnotify.Op) {
	relPath := path
	if rel, err := filepath.Rel(root, path); err == nil {
		relPath = filepath.ToSlash(rel)
	}

	if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		if n, err := idx.store.DeleteByFilePath(ctx, relPath); err != nil {
			idx.logger.Error("failed to remove chunks for deleted file", "file", relPath, "error", err)
		} else if n > 0 {
			idx.logger.Info("removed chunks for deleted file", "file", relPath, "chunks", n)
		}
		return
	}

	n, err := idx.IndexFile(ctx, path, root)
	if err != nil {
		idx.logger.Error("failed to re-index changed file", "file", relPath, "error", err)
		return
	}
	idx.logger.Info("re-indexed changed file", "file", relPath, "chunks", n)
}

// addDirs registers root and every subdirectory with the watcher. fsnotify
// does not watch recursively on its own.
func addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
