package usecase

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
)

// ErrOrchestratorRunning is returned by Start when the worker is already active
var ErrOrchestratorRunning = fmt.Errorf("response orchestrator %w", domain.ErrAlreadyRunning)

// MetricsRecorder receives pipeline counters
type MetricsRecorder interface {
	ObserveEvent(kind domain.EventKind)
	ObserveAction(record domain.ActionRecord)
	SetContainmentState(state domain.ContainmentState)
	EventDropped()
}

type noopMetrics struct{}

func (noopMetrics) ObserveEvent(domain.EventKind) {}
func (noopMetrics) ObserveAction(domain.ActionRecord) {}
func (noopMetrics) SetContainmentState(domain.ContainmentState) {}
func (noopMetrics) EventDropped() {}

// ResponseSettings controls what the orchestrator does beyond isolation
type ResponseSettings struct {
	KillOffenders       bool
	ShutdownAfterAlerts int
	QueueSize           int
}

// ResponseOrchestrator consumes detection events and drives containment
type ResponseOrchestrator struct {
	containment *Containment
	sink        repository.EventSink
	inspector   repository.ProcessInspector
	metrics     MetricsRecorder
	settings    ResponseSettings
	logger      zerolog.Logger

	events chan domain.DetectionEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex

	running           bool
	shutdownRequested bool

	stats struct {
		eventsProcessed     int
		decoyEvents         int
		entropyEvents       int
		eventsDropped       int
		sinkFailures        int
		processesTerminated int
		killFailures        int
	}
}

// NewResponseOrchestrator creates a new response orchestrator.
// sink, inspector and metrics may be nil.
func NewResponseOrchestrator(
	containment *Containment,
	sink repository.EventSink,
	inspector repository.ProcessInspector,
	metrics MetricsRecorder,
	settings ResponseSettings,
	logger zerolog.Logger,
) *ResponseOrchestrator {
	if settings.QueueSize <= 0 {
		settings.QueueSize = 256
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ResponseOrchestrator{
		containment: containment,
		sink:        sink,
		inspector:   inspector,
		metrics:     metrics,
		settings:    settings,
		logger:      logger.With().Str("component", "response").Logger(),
		events:      make(chan domain.DetectionEvent, settings.QueueSize),
	}
}

// Start begins processing events
func (ro *ResponseOrchestrator) Start(ctx context.Context) error {
	ro.mu.Lock()
	if ro.running {
		ro.mu.Unlock()
		return ErrOrchestratorRunning
	}
	ro.running = true
	workerCtx, cancel := context.WithCancel(ctx)
	ro.cancel = cancel
	ro.mu.Unlock()

	ro.logger.Info().
		Bool("safe_mode", ro.containment.SafeMode()).
		Bool("kill_offenders", ro.settings.KillOffenders).
		Int("shutdown_after_alerts", ro.settings.ShutdownAfterAlerts).
		Msg("starting response orchestrator")

	ro.metrics.SetContainmentState(ro.containment.State())

	ro.wg.Add(1)
	go ro.eventProcessor(workerCtx)

	return nil
}

// Stop halts the worker after draining queued events
func (ro *ResponseOrchestrator) Stop() {
	ro.mu.Lock()
	if !ro.running {
		ro.mu.Unlock()
		return
	}
	ro.running = false
	cancel := ro.cancel
	ro.mu.Unlock()

	cancel()
	ro.wg.Wait()

	ro.mu.RLock()
	ro.logger.Info().
		Int("events_processed", ro.stats.eventsProcessed).
		Int("decoy_events", ro.stats.decoyEvents).
		Int("entropy_events", ro.stats.entropyEvents).
		Int("events_dropped", ro.stats.eventsDropped).
		Int("processes_terminated", ro.stats.processesTerminated).
		Msg("response orchestrator stopped")
	ro.mu.RUnlock()
}

// Submit queues an event without blocking. It is used as the AlertFunc for
// the monitor and the scanner; events are dropped when the queue is full.
func (ro *ResponseOrchestrator) Submit(event domain.DetectionEvent) {
	select {
	case ro.events <- event:
	default:
		ro.mu.Lock()
		ro.stats.eventsDropped++
		ro.mu.Unlock()
		ro.metrics.EventDropped()
		ro.logger.Error().Str("event", event.String()).Msg("event queue full, dropping event")
	}
}

func (ro *ResponseOrchestrator) eventProcessor(ctx context.Context) {
	defer ro.wg.Done()

	for {
		select {
		case <-ctx.Done():
			ro.drain()
			return
		case event := <-ro.events:
			ro.processEvent(ctx, event)
		}
	}
}

func (ro *ResponseOrchestrator) drain() {
	// sinks and kills still get a live context for queued events
	ctx := context.Background()
	for {
		select {
		case event := <-ro.events:
			ro.processEvent(ctx, event)
		default:
			return
		}
	}
}

func (ro *ResponseOrchestrator) processEvent(ctx context.Context, event domain.DetectionEvent) {
	ro.logger.Error().
		Str("id", event.ID).
		Str("kind", string(event.Kind)).
		Str("path", event.SubjectPath).
		Str("target", event.RenameTarget).
		Float64("entropy", event.Entropy).
		Str("detail", event.Detail).
		Msg("[ALERT] threat detected")

	if ro.sink != nil {
		if err := ro.sink.Write(ctx, event); err != nil {
			ro.logger.Warn().Err(err).Msg("failed to write event to sinks")
			ro.mu.Lock()
			ro.stats.sinkFailures++
			ro.mu.Unlock()
		}
	}
	ro.metrics.ObserveEvent(event.Kind)

	ro.containment.IsolateNetwork()
	ro.metrics.SetContainmentState(ro.containment.State())

	if ro.settings.KillOffenders {
		ro.killHolders(ctx, event)
	}

	ro.mu.Lock()
	ro.stats.eventsProcessed++
	if event.Kind.IsDecoyKind() {
		ro.stats.decoyEvents++
	} else {
		ro.stats.entropyEvents++
	}
	shouldShutdown := ro.settings.ShutdownAfterAlerts > 0 &&
		ro.stats.decoyEvents >= ro.settings.ShutdownAfterAlerts &&
		!ro.shutdownRequested
	if shouldShutdown {
		ro.shutdownRequested = true
	}
	ro.mu.Unlock()

	if shouldShutdown {
		ro.containment.ShutdownSystem()
	}
}

// killHolders terminates processes that have the affected file open
func (ro *ResponseOrchestrator) killHolders(ctx context.Context, event domain.DetectionEvent) {
	if ro.inspector == nil {
		return
	}

	paths := []string{event.SubjectPath}
	if event.RenameTarget != "" {
		paths = append(paths, event.RenameTarget)
	}

	self := os.Getpid()
	seen := make(map[int]struct{})

	for _, path := range paths {
		holders, err := ro.inspector.FindHolders(ctx, path)
		if err != nil {
			ro.logger.Warn().Err(err).Str("path", path).Msg("failed to enumerate file holders")
			continue
		}

		for _, proc := range holders {
			if proc.PID == self {
				continue
			}
			if _, dup := seen[proc.PID]; dup {
				continue
			}
			seen[proc.PID] = struct{}{}

			ro.logger.Warn().Int("pid", proc.PID).Str("name", proc.Name).Str("path", path).Msg("process holds affected file")

			err := ro.containment.KillProcess(ctx, proc.PID)
			ro.mu.Lock()
			if err != nil {
				ro.stats.killFailures++
			} else if !ro.containment.SafeMode() {
				ro.stats.processesTerminated++
			}
			ro.mu.Unlock()
		}
	}
}

// Stats returns orchestrator statistics
func (ro *ResponseOrchestrator) Stats() map[string]interface{} {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	return map[string]interface{}{
		"running":              ro.running,
		"events_processed":     ro.stats.eventsProcessed,
		"decoy_events":         ro.stats.decoyEvents,
		"entropy_events":       ro.stats.entropyEvents,
		"events_dropped":       ro.stats.eventsDropped,
		"sink_failures":        ro.stats.sinkFailures,
		"processes_terminated": ro.stats.processesTerminated,
		"kill_failures":        ro.stats.killFailures,
		"shutdown_requested":   ro.shutdownRequested,
		"containment_state":    ro.containment.State().String(),
	}
}
