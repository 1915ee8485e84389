package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fsWatchDebounce coalesces the burst of fsnotify events a single external
// write (temp file + rename) tends to generate into one onChange call.
const fsWatchDebounce = 50 * time.Millisecond

// FSAdapter is the default Adapter: plain local files, written via a
// temp-file-then-rename sequence so a reader (or the fsnotify-based
// watcher) never observes a partially written file — the same
// write-then-atomically-publish idiom this repository's state cell uses in
// memory, applied here at the filesystem boundary.
type FSAdapter struct{}

// NewFSAdapter returns the default filesystem-backed Adapter.
func NewFSAdapter() *FSAdapter { return &FSAdapter{} }

func (a *FSAdapter) Read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return b, nil
}

func (a *FSAdapter) Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".proseql-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func (a *FSAdapter) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (a *FSAdapter) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (a *FSAdapter) EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Watch follows path with fsnotify, debouncing the burst of events a single
// external write (temp file + rename) tends to generate into one onChange
// call. Grounded on hazyhaar-GoClode's fsnotify-based WatchFile: a
// background goroutine selecting over watcher.Events/Errors against a
// cancelable stop signal.
func (a *FSAdapter) Watch(path string, onChange func()) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		var timer *time.Timer
		for {
			select {
			case <-done:
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(fsWatchDebounce, onChange)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
				// fsnotify surface errors (e.g. a removed-then-recreated
				// inode losing its watch) are swallowed here — the next
				// successful event still triggers onChange.
			}
		}
	}()

	stop := func() { close(done) }
	return stop, nil
}
