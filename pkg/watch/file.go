// Package watch turns changes to a document file on disk into incremental
// edits of an in-memory document.Buffer, so listeners see the same change
// stream a live editor would produce.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/citelens/pkg/document"
)

// FileWatcher mirrors one file into a buffer.
type FileWatcher struct {
	path     string
	buffer   *document.Buffer
	digest   [32]byte
	logger   *slog.Logger
	onUpdate func(document.Change)
}

// NewFileWatcher creates a watcher for path that edits buffer. The buffer
// must already hold the file's current contents.
func NewFileWatcher(path string, buffer *document.Buffer, logger *slog.Logger) *FileWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWatcher{
		path:   path,
		buffer: buffer,
		digest: blake3.Sum256([]byte(buffer.String())),
		logger: logger,
	}
}

// SetOnUpdate sets a callback run after each applied edit.
func (w *FileWatcher) SetOnUpdate(fn func(document.Change)) {
	w.onUpdate = fn
}

// Run watches until ctx is done. Events are handled one at a time on the
// calling goroutine.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace files by rename.
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.Sync(); err != nil {
				w.logger.Warn("failed to sync watched file", "path", w.path, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "path", w.path, "error", err)
		}
	}
}

// Sync reads the file and applies any difference to the buffer as a single
// replacement. Returns without touching the buffer when the content digest
// is unchanged.
func (w *FileWatcher) Sync() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", w.path, err)
	}
	digest := blake3.Sum256(data)
	if digest == w.digest {
		return nil
	}
	w.digest = digest

	oldText := w.buffer.String()
	newText := string(data)
	start, oldEnd, newEnd := Diff(oldText, newText)
	if err := w.buffer.Replace(start, oldEnd, newText[start:newEnd]); err != nil {
		return err
	}
	w.logger.Debug("applied file change", "path", w.path, "start", start, "removed", oldEnd-start, "inserted", newEnd-start)

	if w.onUpdate != nil {
		w.onUpdate(document.Change{Start: start, End: newEnd, OldEnd: oldEnd})
	}
	return nil
}

// Diff finds the smallest single replacement turning oldText into newText:
// oldText[start:oldEnd] becomes newText[start:newEnd].
func Diff(oldText, newText string) (start, oldEnd, newEnd int) {
	limit := min(len(oldText), len(newText))
	for start < limit && oldText[start] == newText[start] {
		start++
	}
	oldEnd, newEnd = len(oldText), len(newText)
	for oldEnd > start && newEnd > start && oldText[oldEnd-1] == newText[newEnd-1] {
		oldEnd--
		newEnd--
	}
	return start, oldEnd, newEnd
}
