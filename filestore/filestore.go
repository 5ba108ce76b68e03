// Package filestore keeps saved-item values as one JSON file per key in a
// directory and reports changes other processes make to those files.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Storage reads and writes <dir>/<key>.json. Writes go to a temp file that is
// renamed into place, so readers never see a partial value.
type Storage struct {
	dir string
}

func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) Dir() string { return s.dir }

func (s *Storage) Get(_ context.Context, key string) ([]byte, error) {
	path, err := filePath(s.dir, key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}

func (s *Storage) Set(_ context.Context, key string, value []byte) error {
	path, err := filePath(s.dir, key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func filePath(dir, key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(dir, key+".json"), nil
}

// Watcher is a saved.Notifier backed by fsnotify on the storage directory.
// Every rename into place is observed by all watchers of the directory, so
// Notify has nothing to do.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func()

	done chan struct{}
	wg   sync.WaitGroup
}

func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w := &Watcher{
		dir:     dir,
		watcher: fw,
		subs:    make(map[string]map[int]func()),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) Notify(context.Context, string) error { return nil }

func (w *Watcher) OnChange(key string, fn func()) (func(), error) {
	path, err := filePath(w.dir, key)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	if w.subs[path] == nil {
		w.subs[path] = make(map[int]func())
	}
	w.subs[path][id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs[path], id)
	}, nil
}

// Close stops watching. Callbacks already running finish first.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.fire(filepath.Clean(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("filestore: watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	fns := make([]func(), 0, len(w.subs[path]))
	for _, fn := range w.subs[path] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
