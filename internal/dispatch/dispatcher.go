// Package dispatch carries install-rule and emit commands from the decision
// engine to whatever delivers them to switches.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/core"
)

// Dispatcher hands commands to the switch-control collaborator. Calls are
// fire-and-forget: a nil error means the command was accepted for delivery,
// not that the switch applied it.
type Dispatcher interface {
	InstallRule(ctx context.Context, rule core.InstallRule) error
	Emit(ctx context.Context, emit core.Emit) error
}

// Sink is a Dispatcher owning resources that must be released.
type Sink interface {
	Dispatcher
	Name() string
	Close() error
}

// Multi fans each command out to every sink. All sinks are tried; their
// errors are joined.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out over sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) InstallRule(ctx context.Context, rule core.InstallRule) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.InstallRule(ctx, rule); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Emit(ctx context.Context, emit core.Emit) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, emit); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Name() string { return "multi" }

// Sinks returns the names of the wrapped sinks.
func (m *Multi) Sinks() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// New builds the sinks listed in cfg.Sinks.
func New(cfg config.DispatchConfig, node string) (*Multi, error) {
	var sinks []Sink
	for _, name := range cfg.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, NewLogSink(nil))
		case "kafka":
			k, err := NewKafkaSink(cfg.Kafka, node)
			if err != nil {
				NewMulti(sinks...).Close()
				return nil, fmt.Errorf("kafka sink: %w", err)
			}
			sinks = append(sinks, k)
		default:
			NewMulti(sinks...).Close()
			return nil, fmt.Errorf("%w: unknown dispatch sink %q", core.ErrConfigInvalid, name)
		}
	}
	return NewMulti(sinks...), nil
}
