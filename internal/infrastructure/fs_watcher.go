package infrastructure

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
)

// FSWatcher adapts fsnotify to repository.FileWatcher
type FSWatcher struct {
	watcher *fsnotify.Watcher
	events  chan repository.WatchEvent
	errors  chan error
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewFSWatcher creates a watcher backed by the OS notification API
func NewFSWatcher() (repository.FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FSWatcher{
		watcher: w,
		events:  make(chan repository.WatchEvent, 256),
		errors:  make(chan error, 16),
		done:    make(chan struct{}),
	}

	fw.wg.Add(1)
	go fw.forward()

	return fw, nil
}

func (fw *FSWatcher) forward() {
	defer fw.wg.Done()
	defer close(fw.events)
	defer close(fw.errors)

	for {
		select {
		case <-fw.done:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			select {
			case fw.events <- repository.WatchEvent{Path: ev.Name, Op: translateOp(ev.Op)}:
			case <-fw.done:
				return
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			default:
				// a slow consumer only loses diagnostics
			}
		}
	}
}

func translateOp(op fsnotify.Op) repository.WatchOp {
	var out repository.WatchOp
	if op.Has(fsnotify.Create) {
		out |= repository.OpCreate
	}
	if op.Has(fsnotify.Write) {
		out |= repository.OpWrite
	}
	if op.Has(fsnotify.Remove) {
		out |= repository.OpRemove
	}
	if op.Has(fsnotify.Rename) {
		out |= repository.OpRename
	}
	if op.Has(fsnotify.Chmod) {
		out |= repository.OpChmod
	}
	return out
}

// Add watches a single directory
func (fw *FSWatcher) Add(dir string) error {
	return fw.watcher.Add(dir)
}

// Events returns translated notifications
func (fw *FSWatcher) Events() <-chan repository.WatchEvent {
	return fw.events
}

// Errors returns notification subsystem errors
func (fw *FSWatcher) Errors() <-chan error {
	return fw.errors
}

// Close releases the OS subscription and waits for the forwarder to exit
func (fw *FSWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}
