package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
)

const maxActionHistory = 256

// ActionObserver is notified of every action the controller handles
type ActionObserver func(record domain.ActionRecord)

// ContainmentOption configures a Containment controller
type ContainmentOption func(*Containment)

// WithActionObserver registers an observer for action records
func WithActionObserver(observer ActionObserver) ContainmentOption {
	return func(c *Containment) {
		c.observers = append(c.observers, observer)
	}
}

// Containment is the escalation state machine.
// Safe mode is fixed at construction; only actions are gated by it, never state transitions.
type Containment struct {
	safeMode  bool
	inspector repository.ProcessInspector
	logger    zerolog.Logger
	observers []ActionObserver

	mu          sync.Mutex
	state       domain.ContainmentState
	triggeredAt time.Time
	history     []domain.ActionRecord
}

// NewContainment creates a controller in the IDLE state
func NewContainment(safeMode bool, inspector repository.ProcessInspector, logger zerolog.Logger, opts ...ContainmentOption) *Containment {
	c := &Containment{
		safeMode:  safeMode,
		inspector: inspector,
		logger:    logger.With().Str("component", "containment").Bool("safe_mode", safeMode).Logger(),
		state:     domain.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	if safeMode {
		c.logger.Info().Msg("containment running in SAFE MODE, actions are logged only")
	} else {
		c.logger.Warn().Msg("containment running in ACTIVE MODE, process termination is enabled")
	}
	return c
}

// SafeMode reports whether destructive actions are suppressed
func (c *Containment) SafeMode() bool {
	return c.safeMode
}

// State returns the current containment state
func (c *Containment) State() domain.ContainmentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TriggeredAt returns when the current episode started, zero when idle
func (c *Containment) TriggeredAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggeredAt
}

// IsolateNetwork moves the controller to TRIGGERED.
// Isolation itself is always simulated. Calls while TRIGGERED are no-ops.
func (c *Containment) IsolateNetwork() {
	c.mu.Lock()
	if c.state == domain.StateTriggered {
		c.mu.Unlock()
		c.logger.Debug().Msg("network already isolated")
		return
	}
	c.state = domain.StateTriggered
	c.triggeredAt = time.Now()
	c.mu.Unlock()

	outcome := "simulated"
	if c.safeMode {
		c.logger.Warn().Msg("[SAFE MODE] would isolate network")
		outcome = "logged only"
	} else {
		c.logger.Error().Msg("ISOLATING NETWORK (simulated, interfaces left up)")
	}

	c.record(domain.ActionRecord{
		Action:    domain.ActionIsolateNetwork,
		SafeMode:  c.safeMode,
		Simulated: true,
		Outcome:   outcome,
	})
}

// KillProcess terminates pid once. It does not depend on the containment state.
// In safe mode it only logs and returns nil.
func (c *Containment) KillProcess(ctx context.Context, pid int) error {
	if c.safeMode {
		c.logger.Warn().Int("pid", pid).Msg("[SAFE MODE] would kill process")
		c.record(domain.ActionRecord{
			Action:    domain.ActionKillProcess,
			PID:       pid,
			SafeMode:  true,
			Simulated: true,
			Outcome:   "logged only",
		})
		return nil
	}

	err := c.terminate(ctx, pid)

	record := domain.ActionRecord{
		Action:  domain.ActionKillProcess,
		PID:     pid,
		Outcome: "terminated",
	}
	if err != nil {
		record.Outcome = killOutcome(err)
		c.logger.Error().Err(err).Int("pid", pid).Msg("failed to kill process")
	}
	c.record(record)
	return err
}

func (c *Containment) terminate(ctx context.Context, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidPID, pid)
	}
	if c.inspector == nil {
		return errors.New("no process inspector configured")
	}

	proc, err := c.inspector.FindByPID(ctx, pid)
	if err != nil {
		return err
	}

	c.logger.Error().Int("pid", proc.PID).Str("name", proc.Name).Str("path", proc.Path).Msg("KILLING PROCESS")

	if err := c.inspector.Terminate(ctx, pid); err != nil {
		return err
	}

	c.logger.Info().Int("pid", pid).Str("name", proc.Name).Msg("process terminated")
	return nil
}

func killOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrProcessNotFound):
		return "not found"
	case errors.Is(err, domain.ErrAccessDenied):
		return "access denied"
	case errors.Is(err, domain.ErrInvalidPID):
		return "invalid pid"
	default:
		return "failed: " + err.Error()
	}
}

// ShutdownSystem emits a shutdown intent. The host is never powered off.
func (c *Containment) ShutdownSystem() {
	outcome := "intent recorded"
	if c.safeMode {
		c.logger.Warn().Msg("[SAFE MODE] would shut down system")
		outcome = "logged only"
	} else {
		c.logger.Error().Msg("SYSTEM SHUTDOWN REQUESTED (intent only)")
	}

	c.record(domain.ActionRecord{
		Action:    domain.ActionShutdown,
		SafeMode:  c.safeMode,
		Simulated: true,
		Outcome:   outcome,
	})
}

// Reset returns the controller to IDLE. Safe mode is unchanged.
func (c *Containment) Reset() domain.ContainmentState {
	c.mu.Lock()
	previous := c.state
	c.state = domain.StateIdle
	c.triggeredAt = time.Time{}
	c.mu.Unlock()

	c.logger.Info().Str("previous", previous.String()).Msg("containment reset by operator")
	return previous
}

// Actions returns the most recent action records, oldest first
func (c *Containment) Actions() []domain.ActionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ActionRecord, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Containment) record(record domain.ActionRecord) {
	record.Timestamp = time.Now().UTC()

	c.mu.Lock()
	c.history = append(c.history, record)
	if len(c.history) > maxActionHistory {
		c.history = c.history[len(c.history)-maxActionHistory:]
	}
	c.mu.Unlock()

	for _, observer := range c.observers {
		observer(record)
	}
}
