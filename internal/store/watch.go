package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watch reports changes to the record file. The parent directory is watched rather
// than the file because atomic writes replace the file by rename, which would drop a
// watch placed on the file itself.
func (fs *FileStore) Watch(ctx context.Context) (<-chan struct{}, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(fs.path)); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	changes := make(chan struct{}, 1)
	done := make(chan struct{})
	target := filepath.Base(fs.path)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				// Coalesce: one pending notification is enough to trigger a re-read.
				select {
				case changes <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = watcher.Close()
		})
	}
	return changes, stop, nil
}
