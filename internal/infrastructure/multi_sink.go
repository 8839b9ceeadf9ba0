package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
)

// NamedSink pairs a sink with a label for error reporting
type NamedSink struct {
	Name string
	Sink repository.EventSink
}

// MultiSink fans events out to every configured sink.
// A failing sink never prevents delivery to the others.
type MultiSink struct {
	sinks []NamedSink
}

// NewMultiSink creates a fan-out sink
func NewMultiSink(sinks ...NamedSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Add appends a sink
func (m *MultiSink) Add(name string, sink repository.EventSink) {
	m.sinks = append(m.sinks, NamedSink{Name: name, Sink: sink})
}

// Len returns the number of sinks
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Names lists the configured sinks
func (m *MultiSink) Names() []string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name)
	}
	return names
}

// Write delivers the event to all sinks and joins their errors
func (m *MultiSink) Write(ctx context.Context, event domain.DetectionEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Write(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
