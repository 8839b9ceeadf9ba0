package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIO marks decoy creation or read failures. The ledger is never modified when it is returned.
	ErrIO = errors.New("decoy i/o failure")

	ErrNotFound        = errors.New("not found")
	ErrProcessNotFound = fmt.Errorf("process %w", ErrNotFound)
	ErrAccessDenied    = errors.New("access denied")
	ErrInvalidPID      = errors.New("invalid process ID")

	// ErrNotificationSubsystem is returned by Monitor.Start when the OS watch cannot be set up.
	ErrNotificationSubsystem = errors.New("notification subsystem failure")

	ErrAlreadyRunning = errors.New("already running")
)
