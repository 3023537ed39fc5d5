package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/nft-rarity/internal/ranking"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

type fakeImporter struct {
	mu       sync.Mutex
	requests []ranking.ImportRequest
	failures []string
	err      error
}

func (f *fakeImporter) Import(_ context.Context, req ranking.ImportRequest) (*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &models.Collection{ID: "id-" + req.Slug, Slug: req.Slug, Name: req.Name, ItemCount: len(req.Items)}, nil
}

func (f *fakeImporter) ReportImportFailure(_ context.Context, source string, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, source)
}

func (f *fakeImporter) imported() []ranking.ImportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ranking.ImportRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

const collectionDoc = `{
  "name": "Tiny Apes",
  "items": [
    {"tokenId": 1, "attributes": [{"trait_type": "bg", "value": "red"}]},
    {"tokenId": "2", "attributes": [{"trait_type": "bg", "value": "blue"}, {"trait_type": "level", "value": 3}]}
  ]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanOnce_ImportsCollectionFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Tiny Apes.json"), collectionDoc)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, ".hidden.json"), collectionDoc)

	imp := &fakeImporter{}
	w := New(Config{Dir: dir}, imp)

	assert.Equal(t, 1, w.ScanOnce(context.Background()))

	reqs := imp.imported()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Tiny Apes", reqs[0].Name)
	assert.Equal(t, "tiny-apes", reqs[0].Slug, "slug falls back to the file name")
	assert.Equal(t, filepath.Join(dir, "Tiny Apes.json"), reqs[0].Source)
	require.Len(t, reqs[0].Items, 2)
	assert.Equal(t, "1", reqs[0].Items[0].TokenID)
	assert.Equal(t, "3", reqs[0].Items[1].Attributes[1].Value)
}

func TestScanOnce_SkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apes.json")
	writeFile(t, path, collectionDoc)

	imp := &fakeImporter{}
	w := New(Config{Dir: dir}, imp)

	assert.Equal(t, 1, w.ScanOnce(context.Background()))
	assert.Equal(t, 0, w.ScanOnce(context.Background()))

	// Bump the mod time to simulate a rewrite.
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	assert.Equal(t, 1, w.ScanOnce(context.Background()))
	assert.Len(t, imp.imported(), 2)
}

func TestScanOnce_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.json"), `{"items": [`)

	imp := &fakeImporter{}
	w := New(Config{Dir: dir}, imp)

	assert.Equal(t, 0, w.ScanOnce(context.Background()))
	assert.Equal(t, []string{filepath.Join(dir, "broken.json")}, imp.failures)

	// A failed version is not retried until it changes.
	assert.Equal(t, 0, w.ScanOnce(context.Background()))
	assert.Len(t, imp.failures, 1)
}

func TestScanOnce_ImporterError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "apes.json"), collectionDoc)

	imp := &fakeImporter{err: errors.New("store unavailable")}
	w := New(Config{Dir: dir}, imp)

	assert.Equal(t, 0, w.ScanOnce(context.Background()))
	assert.Len(t, imp.failures, 1)
}

func TestScanOnce_MissingDirectory(t *testing.T) {
	w := New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, &fakeImporter{})
	assert.Equal(t, 0, w.ScanOnce(context.Background()))
}

func TestStart_PicksUpNewFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "imports")
	imp := &fakeImporter{}
	w := New(Config{Dir: dir, PollInterval: 50 * time.Millisecond}, imp)

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(dir, "apes.json"), collectionDoc)

	// Either the file event or the backup poll imports it.
	require.Eventually(t, func() bool {
		return len(imp.imported()) >= 1
	}, 5*time.Second, 20*time.Millisecond)

	w.Stop()
	w.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New(Config{Dir: t.TempDir()}, &fakeImporter{})

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNew_DefaultPollInterval(t *testing.T) {
	w := New(Config{Dir: "x"}, &fakeImporter{})
	assert.Equal(t, DefaultPollInterval, w.poll)
}
