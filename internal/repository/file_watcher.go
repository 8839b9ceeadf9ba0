package repository

// WatchOp is the kind of raw filesystem change
type WatchOp uint32

const (
	OpCreate WatchOp = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Has reports whether op includes other
func (op WatchOp) Has(other WatchOp) bool {
	return op&other != 0
}

// WatchEvent is a raw notification from the OS
type WatchEvent struct {
	Path string
	Op   WatchOp
}

// FileWatcher is a non-recursive directory subscription.
// Events and Errors are closed after Close returns.
type FileWatcher interface {
	Add(dir string) error
	Events() <-chan WatchEvent
	Errors() <-chan error
	Close() error
}

// WatcherFactory creates a fresh watcher for each monitor start
type WatcherFactory func() (FileWatcher, error)
