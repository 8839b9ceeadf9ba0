package domain

import (
	"time"
)

// Process represents a host process implicated in a detection
type Process struct {
	PID       int
	Name      string
	Path      string
	Status    ProcessStatus
	StartTime time.Time
}

// ProcessStatus represents the current state of a process
type ProcessStatus string

const (
	StatusRunning    ProcessStatus = "running"
	StatusTerminated ProcessStatus = "terminated"
)

// NewProcess creates a new process entity with validation
func NewProcess(pid int, name, path string) (*Process, error) {
	if pid <= 0 {
		return nil, ErrInvalidPID
	}

	return &Process{
		PID:       pid,
		Name:      name,
		Path:      path,
		Status:    StatusRunning,
		StartTime: time.Now(),
	}, nil
}

// IsRunning checks if the process is currently running
func (p *Process) IsRunning() bool {
	return p.Status == StatusRunning
}
