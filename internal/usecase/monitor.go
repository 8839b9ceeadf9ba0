package usecase

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
)

// DefaultRenameWindow is how long a decoy rename waits for the matching create
const DefaultRenameWindow = 100 * time.Millisecond

// FileMonitor turns raw filesystem notifications into decoy tampering events.
// One consumer goroutine owns the watcher; the alert callback only ever runs there.
type FileMonitor struct {
	newWatcher   repository.WatcherFactory
	renameWindow time.Duration
	logger       zerolog.Logger

	mu      sync.Mutex
	running bool
	watcher repository.FileWatcher
	stop    chan struct{}
	done    chan struct{}
}

// NewFileMonitor creates a stopped monitor
func NewFileMonitor(factory repository.WatcherFactory, logger zerolog.Logger) *FileMonitor {
	return &FileMonitor{
		newWatcher:   factory,
		renameWindow: DefaultRenameWindow,
		logger:       logger.With().Str("component", "monitor").Logger(),
	}
}

// SetRenameWindow overrides the rename pairing window. Only valid before Start.
func (m *FileMonitor) SetRenameWindow(window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if window > 0 {
		m.renameWindow = window
	}
}

// IsRunning reports whether the consumer loop is active
func (m *FileMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start subscribes recursively to root and dispatches events for paths in the ledger.
// Ledger membership is captured at subscription time. Calling Start while running is a no-op.
func (m *FileMonitor) Start(root string, ledger *domain.CanaryLedger, onAlert AlertFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", domain.ErrNotificationSubsystem, root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationSubsystem, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrNotificationSubsystem, absRoot)
	}

	watcher, err := m.newWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationSubsystem, err)
	}

	dirs, err := m.addRecursive(watcher, absRoot)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("%w: %v", domain.ErrNotificationSubsystem, err)
	}

	tracked := make(map[string]struct{}, ledger.Len())
	for _, decoy := range ledger.Snapshot() {
		tracked[filepath.Clean(decoy.Path)] = struct{}{}
	}
	for _, dir := range ledger.Directories() {
		if !isWithin(absRoot, dir) {
			m.logger.Warn().Str("dir", dir).Str("root", absRoot).Msg("decoy directory is outside the watched tree")
		}
	}

	m.watcher = watcher
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true

	loop := &monitorLoop{
		watcher:      watcher,
		tracked:      tracked,
		onAlert:      onAlert,
		renameWindow: m.renameWindow,
		logger:       m.logger,
		addDir:       func(dir string) { m.addRecursive(watcher, dir) },
	}
	stop, done := m.stop, m.done
	go func() {
		if !loop.run(stop, done) {
			m.loopExited(done)
		}
	}()

	m.logger.Info().
		Str("root", absRoot).
		Int("directories", dirs).
		Int("decoys", len(tracked)).
		Msg("filesystem monitor started")
	return nil
}

// Stop closes the subscription and waits for the consumer loop to exit.
// No callback fires after Stop returns. It must not be called from the callback.
func (m *FileMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false

	close(m.stop)
	if err := m.watcher.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to close watcher")
	}
	<-m.done

	m.watcher = nil
	m.logger.Info().Msg("filesystem monitor stopped")
}

// loopExited clears the running state when the watcher went away without Stop
func (m *FileMonitor) loopExited(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.done != done {
		return
	}
	m.running = false
	m.watcher.Close()
	m.watcher = nil
	m.logger.Error().Msg("watcher closed unexpectedly, filesystem monitor stopped")
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (m *FileMonitor) addRecursive(watcher repository.FileWatcher, root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			m.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable directory")
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			if path == root {
				return err
			}
			m.logger.Warn().Err(err).Str("dir", path).Msg("failed to watch directory")
			return nil
		}
		count++
		return nil
	})
	return count, err
}

type pendingRename struct {
	path     string
	deadline time.Time
}

type monitorLoop struct {
	watcher      repository.FileWatcher
	tracked      map[string]struct{}
	onAlert      AlertFunc
	renameWindow time.Duration
	logger       zerolog.Logger
	addDir       func(dir string)

	pending *pendingRename
	timer   *time.Timer
}

// run returns true when it exits because stop was closed
func (l *monitorLoop) run(stop <-chan struct{}, done chan<- struct{}) bool {
	defer close(done)

	l.timer = time.NewTimer(time.Hour)
	l.timer.Stop()
	defer l.timer.Stop()

	events := l.watcher.Events()
	errs := l.watcher.Errors()

	for {
		select {
		case <-stop:
			l.flushRename("")
			return true

		case ev, ok := <-events:
			if !ok {
				l.flushRename("")
				select {
				case <-stop:
					return true
				default:
					return false
				}
			}
			select {
			case <-stop:
				l.flushRename("")
				return true
			default:
			}
			l.handle(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			l.logger.Error().Err(err).Msg("watcher error")

		case <-l.timer.C:
			if l.pending != nil && !time.Now().Before(l.pending.deadline) {
				l.flushRename("")
			}
		}
	}
}

func (l *monitorLoop) handle(ev repository.WatchEvent) {
	path := filepath.Clean(ev.Path)

	if ev.Op.Has(repository.OpCreate) {
		if l.pending != nil {
			l.flushRename(path)
		}
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			l.addDir(path)
			return
		}
	}

	if !l.isDecoy(path) {
		return
	}

	switch {
	case ev.Op.Has(repository.OpRename):
		// destination arrives as a separate create on most platforms
		l.flushRename("")
		l.pending = &pendingRename{path: path, deadline: time.Now().Add(l.renameWindow)}
		l.timer.Reset(l.renameWindow)

	case ev.Op.Has(repository.OpRemove):
		l.flushRename("")
		l.emit(domain.NewDetectionEvent(domain.KindDecoyDeleted, path))

	case ev.Op.Has(repository.OpWrite):
		l.flushRename("")
		l.emit(domain.NewDetectionEvent(domain.KindDecoyModified, path))

	case ev.Op.Has(repository.OpCreate):
		// something was moved over the decoy
		event := domain.NewDetectionEvent(domain.KindDecoyModified, path)
		event.Detail = "decoy replaced"
		l.emit(event)
	}
}

func (l *monitorLoop) flushRename(target string) {
	if l.pending == nil {
		return
	}
	source := l.pending.path
	l.pending = nil
	l.timer.Stop()

	l.emit(domain.NewRenameEvent(source, target))
}

func (l *monitorLoop) isDecoy(path string) bool {
	_, ok := l.tracked[path]
	return ok
}

func (l *monitorLoop) emit(event domain.DetectionEvent) {
	l.logger.Error().
		Str("kind", string(event.Kind)).
		Str("path", event.SubjectPath).
		Str("target", event.RenameTarget).
		Msg("[CANARY] decoy tampering detected")

	if l.onAlert != nil {
		l.onAlert(event)
	}
}
