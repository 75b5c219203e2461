package ingestion

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher(t *testing.T) {
	repo := setupRepo(t)
	im := newTestImporter(t, repo)

	_, err := NewWatcher(nil, t.TempDir(), 0, nil, nil)
	assert.ErrorIs(t, err, ErrImporterRequired)

	_, err = NewWatcher(im, filepath.Join(t.TempDir(), "missing"), 0, nil, nil)
	assert.Error(t, err)

	file := writeFile(t, t.TempDir(), "a.txt", "x")
	_, err = NewWatcher(im, file, 0, nil, nil)
	assert.Error(t, err)

	w, err := NewWatcher(im, t.TempDir(), 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
}

func TestWatcher_ImportsNewFiles(t *testing.T) {
	repo := setupRepo(t)
	im := newTestImporter(t, repo)
	dir := t.TempDir()

	reports := make(chan *Report, 4)
	w, err := NewWatcher(im, dir, 20*time.Millisecond, func(ctx context.Context, r *Report) error {
		reports <- r
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "new.txt", gutenbergText("New Arrival", "Someone", "fresh text"))

	select {
	case r := <-reports:
		assert.Equal(t, 1, r.Imported)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not import the new file")
	}

	count, err := repo.CountBooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
