// Package watcher imports collection files dropped into a directory.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/ranking"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// DefaultPollInterval is the backup rescan interval used when none is set.
const DefaultPollInterval = 30 * time.Second

// Importer stores and ranks a decoded collection.
type Importer interface {
	Import(ctx context.Context, req ranking.ImportRequest) (*models.Collection, error)
}

// FailureReporter is optionally implemented by an Importer to publish
// failed imports.
type FailureReporter interface {
	ReportImportFailure(ctx context.Context, source string, err error)
}

// Config configures a Watcher.
type Config struct {
	Dir          string
	PollInterval time.Duration // backup rescan in case file events are missed
}

// fileState identifies a version of a file already processed.
type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher imports *.json collection files from a directory as they appear
// or change. Each file version is imported at most once.
type Watcher struct {
	dir      string
	poll     time.Duration
	importer Importer

	mu   sync.Mutex
	seen map[string]fileState

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a watcher for config.Dir.
func New(config Config, importer Importer) *Watcher {
	poll := config.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Watcher{
		dir:      config.Dir,
		poll:     poll,
		importer: importer,
		seen:     make(map[string]fileState),
		stopCh:   make(chan struct{}),
	}
}

// Start scans the directory once, then watches it until ctx is cancelled or
// Stop is called. The directory is created if missing.
func (w *Watcher) Start(ctx context.Context) (err error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := fsw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	log.Printf("[Watcher] Watching %s for collection files", w.dir)

	w.ScanOnce(ctx)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Watcher] File watcher error: %v", err)
		case <-ticker.C:
			w.ScanOnce(ctx)
		}
	}
}

// Stop ends a running Start. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !isCollectionFile(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		delete(w.seen, event.Name)
		w.mu.Unlock()
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if _, err := w.processFile(ctx, event.Name); err != nil {
			log.Printf("[Watcher] %v", err)
		}
	}
}

// ScanOnce imports every new or changed collection file in the directory
// and returns the number imported.
func (w *Watcher) ScanOnce(ctx context.Context) int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.Printf("[Watcher] Failed to read %s: %v", w.dir, err)
		return 0
	}

	imported := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(w.dir, entry.Name())
		if entry.IsDir() || !isCollectionFile(path) {
			continue
		}

		ok, err := w.processFile(ctx, path)
		if err != nil {
			log.Printf("[Watcher] %v", err)
		}
		if ok {
			imported++
		}
	}
	return imported
}

// processFile imports path unless this version was already handled. It
// reports whether an import happened. A file that fails to import is not
// retried until it changes.
func (w *Watcher) processFile(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	state := fileState{modTime: info.ModTime(), size: info.Size()}

	w.mu.Lock()
	prev, seen := w.seen[path]
	if seen && prev == state {
		w.mu.Unlock()
		return false, nil
	}
	w.seen[path] = state
	w.mu.Unlock()

	c, err := w.importFile(ctx, path)
	if err != nil {
		if r, ok := w.importer.(FailureReporter); ok {
			r.ReportImportFailure(ctx, path, err)
		}
		return false, fmt.Errorf("failed to import %s: %w", path, err)
	}

	log.Printf("[Watcher] Imported %s as %q (%d items)", filepath.Base(path), c.Slug, c.ItemCount)
	return true, nil
}

func (w *Watcher) importFile(ctx context.Context, path string) (*models.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	doc, err := metadata.DecodeCollection(f)
	if err != nil {
		return nil, err
	}

	slug := doc.Slug
	if slug == "" {
		slug = ranking.Slugify(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}

	return w.importer.Import(ctx, ranking.ImportRequest{
		Name:   doc.Name,
		Slug:   slug,
		Source: path,
		Items:  doc.Items,
	})
}

func isCollectionFile(path string) bool {
	name := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(name), ".json") && !strings.HasPrefix(name, ".")
}
