package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// ProcessInspector implements repository.ProcessInspector on top of gopsutil
type ProcessInspector struct {
	logger zerolog.Logger
}

// NewProcessInspector creates a new process inspector.
// On Windows it also tries to enable SeDebugPrivilege so protected processes can be terminated.
func NewProcessInspector(logger zerolog.Logger) *ProcessInspector {
	logger = logger.With().Str("component", "process").Logger()

	if err := enableTerminatePrivilege(); err != nil {
		logger.Warn().Err(err).Msg("failed to enable debug privilege, termination of system processes may fail")
	}

	return &ProcessInspector{logger: logger}
}

// FindByPID resolves a running process
func (pi *ProcessInspector) FindByPID(ctx context.Context, pid int) (*domain.Process, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidPID, pid)
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, classifyProcessError(pid, err)
	}

	return pi.describe(ctx, proc)
}

func (pi *ProcessInspector) describe(ctx context.Context, proc *process.Process) (*domain.Process, error) {
	name, _ := proc.NameWithContext(ctx)
	exe, _ := proc.ExeWithContext(ctx)
	if name == "" && exe != "" {
		name = filepath.Base(exe)
	}

	p, err := domain.NewProcess(int(proc.Pid), name, exe)
	if err != nil {
		return nil, err
	}
	if created, err := proc.CreateTimeWithContext(ctx); err == nil {
		p.StartTime = time.UnixMilli(created)
	}
	return p, nil
}

// Terminate asks the process to exit once. No escalation to a forced kill.
func (pi *ProcessInspector) Terminate(ctx context.Context, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidPID, pid)
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return classifyProcessError(pid, err)
	}

	if err := proc.TerminateWithContext(ctx); err != nil {
		return classifyProcessError(pid, err)
	}
	return nil
}

// FindHolders lists processes that have path open.
// Processes whose handle tables cannot be read are skipped.
func (pi *ProcessInspector) FindHolders(ctx context.Context, path string) ([]*domain.Process, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var holders []*domain.Process
	skipped := 0

	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return holders, err
		}

		files, err := proc.OpenFilesWithContext(ctx)
		if err != nil {
			skipped++
			continue
		}

		for _, f := range files {
			if filepath.Clean(f.Path) != target {
				continue
			}
			if p, err := pi.describe(ctx, proc); err == nil {
				holders = append(holders, p)
			}
			break
		}
	}

	pi.logger.Debug().
		Str("path", target).
		Int("holders", len(holders)).
		Int("unreadable", skipped).
		Msg("file holder lookup complete")

	return holders, nil
}

func classifyProcessError(pid int, err error) error {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning), isNoSuchProcess(err):
		return fmt.Errorf("pid %d: %w", pid, domain.ErrProcessNotFound)
	case isPermissionDenied(err):
		return fmt.Errorf("pid %d: %w: %v", pid, domain.ErrAccessDenied, err)
	default:
		return fmt.Errorf("pid %d: %w", pid, err)
	}
}
