package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
)

// fakeWatcher lets tests inject raw notifications
type fakeWatcher struct {
	mu     sync.Mutex
	dirs   []string
	events chan repository.WatchEvent
	errs   chan error
	closed bool
	addErr error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		events: make(chan repository.WatchEvent, 64),
		errs:   make(chan error, 4),
	}
}

func (w *fakeWatcher) Add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.addErr != nil {
		return w.addErr
	}
	w.dirs = append(w.dirs, dir)
	return nil
}

func (w *fakeWatcher) Events() <-chan repository.WatchEvent { return w.events }

func (w *fakeWatcher) Errors() <-chan error { return w.errs }

func (w *fakeWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWatcher) watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.dirs))
	copy(out, w.dirs)
	return out
}

func (w *fakeWatcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// mockInspector is an in-memory process table
type mockInspector struct {
	mu         sync.Mutex
	processes  map[int]*domain.Process
	denied     map[int]bool
	holders    map[string][]*domain.Process
	terminated []int
}

func newMockInspector() *mockInspector {
	return &mockInspector{
		processes: make(map[int]*domain.Process),
		denied:    make(map[int]bool),
		holders:   make(map[string][]*domain.Process),
	}
}

func (m *mockInspector) add(pid int, name string) *domain.Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	proc, _ := domain.NewProcess(pid, name, "/usr/bin/"+name)
	m.processes[pid] = proc
	return proc
}

func (m *mockInspector) FindByPID(_ context.Context, pid int) (*domain.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proc, ok := m.processes[pid]
	if !ok {
		return nil, fmt.Errorf("pid %d: %w", pid, domain.ErrProcessNotFound)
	}
	return proc, nil
}

func (m *mockInspector) Terminate(_ context.Context, pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied[pid] {
		return fmt.Errorf("pid %d: %w", pid, domain.ErrAccessDenied)
	}
	if _, ok := m.processes[pid]; !ok {
		return fmt.Errorf("pid %d: %w", pid, domain.ErrProcessNotFound)
	}
	m.terminated = append(m.terminated, pid)
	delete(m.processes, pid)
	return nil
}

func (m *mockInspector) FindHolders(_ context.Context, path string) ([]*domain.Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holders[path], nil
}

func (m *mockInspector) terminatedPIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.terminated))
	copy(out, m.terminated)
	return out
}

// recordingSink collects written events
type recordingSink struct {
	mu     sync.Mutex
	events []domain.DetectionEvent
	err    error
}

func (s *recordingSink) Write(_ context.Context, event domain.DetectionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) written() []domain.DetectionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DetectionEvent, len(s.events))
	copy(out, s.events)
	return out
}

// memoryLedgerStore keeps a saved ledger in memory
type memoryLedgerStore struct {
	decoys []domain.DecoyFile
}

func (s *memoryLedgerStore) Save(_ context.Context, decoys []domain.DecoyFile) error {
	s.decoys = append([]domain.DecoyFile(nil), decoys...)
	return nil
}

func (s *memoryLedgerStore) Load(context.Context) ([]domain.DecoyFile, error) {
	return s.decoys, nil
}

// alertCollector is a thread-safe AlertFunc target
type alertCollector struct {
	mu     sync.Mutex
	events []domain.DetectionEvent
}

func (c *alertCollector) collect(event domain.DetectionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *alertCollector) all() []domain.DetectionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.DetectionEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *alertCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
