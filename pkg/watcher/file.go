package watcher

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// File is a file watcher that notifies when a file-system item changes.
// It watches the parent directory of every file so that a file replaced by
// a rename is still seen.
type File struct {
	watcher  *fsnotify.Watcher
	shutdown chan struct{}
	once     sync.Once

	mu    sync.Mutex
	files map[string]struct{}
}

// NewFile is a standard constructor
func NewFile() (*File, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	f := &File{
		watcher:  watcher,
		shutdown: make(chan struct{}),
		files:    make(map[string]struct{}),
	}
	return f, nil
}

// Add adds a file to start watching
func (f *File) Add(path string) error {
	path = filepath.Clean(path)
	if err := f.watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	f.mu.Lock()
	f.files[path] = struct{}{}
	f.mu.Unlock()
	return nil
}

func (f *File) watched(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[filepath.Clean(name)]
	return ok
}

// Shutdown stop the file watching run loop
func (f *File) Shutdown() {
	f.once.Do(func() {
		close(f.shutdown)
	})
}

// Start is a runloop to watch for files changes from the file paths added from Add()
func (f *File) Start(notifier Notification) {
	defer f.watcher.Close()
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			// a file renamed over the watched one shows up as create
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && f.watched(event.Name) {
				notifier.WatcherItemDidChange(event.Name)
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			notifier.WatcherDidError(err)
		case <-f.shutdown:
			return
		}
	}
}
