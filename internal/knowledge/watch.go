package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/user/crewdesk/internal/types"
)

// Sink receives documents from the drop directory.
type Sink interface {
	UpsertKnowledge(doc types.KnowledgeDocument) error
	RemoveKnowledge(idOrName string) error
}

// Watcher mirrors a directory into the global knowledge pool. Files that are
// created or written are (re)imported by name; removed files are dropped.
type Watcher struct {
	dir  string
	sink Sink
	fsw  *fsnotify.Watcher
}

// NewWatcher watches dir, creating it if needed.
func NewWatcher(dir string, sink Sink) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, sink: sink, fsw: fsw}, nil
}

// Sync imports every supported file already in the directory.
func (w *Watcher) Sync() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read watch dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.upsert(filepath.Join(w.dir, e.Name()))
		}
	}
	return nil
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	slog.Info("knowledge watcher started", "dir", w.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("knowledge watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if hidden(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		name := filepath.Base(ev.Name)
		if err := w.sink.RemoveKnowledge(name); err != nil {
			slog.Debug("dropped file was not imported", "name", name, "error", err)
			return
		}
		slog.Info("knowledge document removed", "name", name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.upsert(ev.Name)
	}
}

func (w *Watcher) upsert(path string) {
	if hidden(path) {
		return
	}
	doc, err := ReadFile(path)
	if errors.Is(err, ErrUnsupportedFormat) {
		slog.Debug("skipping unsupported file", "path", path)
		return
	}
	if err != nil {
		slog.Warn("knowledge import failed", "path", path, "error", err)
		return
	}
	if err := w.sink.UpsertKnowledge(doc); err != nil {
		slog.Error("knowledge upsert failed", "name", doc.Name, "error", err)
		return
	}
	slog.Info("knowledge document imported", "name", doc.Name, "type", doc.Type)
}

// hidden skips editor swap files and dotfiles.
func hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~")
}
