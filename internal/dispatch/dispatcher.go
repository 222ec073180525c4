// Package dispatch runs named remote commands, tracks their lifecycle per
// resource and chains them into workflows.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront-sync/pkg/logger"
	"github.com/utafrali/storefront-sync/pkg/tracing"
)

const tracerName = "github.com/utafrali/storefront-sync/internal/dispatch"

// State is the lifecycle position of the last command run for a resource.
type State string

const (
	Idle      State = "idle"
	InFlight  State = "in_flight"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// Status is the last known state of a resource.
type Status struct {
	Resource  string    `json:"resource"`
	Command   string    `json:"command,omitempty"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Command is a named unit of remote work bound to a resource. Hooks are
// optional and run synchronously around Do.
type Command[Req, Resp any] struct {
	Name     string
	Resource string
	Do       func(ctx context.Context, req Req) (Resp, error)

	OnStart   func(ctx context.Context, req Req)
	OnSuccess func(ctx context.Context, req Req, resp Resp)
	OnFailure func(ctx context.Context, req Req, err error)
}

// Dispatcher executes commands and records per-resource status.
type Dispatcher struct {
	mu       sync.RWMutex
	statuses map[string]Status
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Dispatcher.
func New(l *slog.Logger) *Dispatcher {
	if l == nil {
		l = slog.Default()
	}
	return &Dispatcher{
		statuses: make(map[string]Status),
		logger:   l,
		now:      time.Now,
	}
}

// Status returns the last recorded status for resource. Unknown resources are Idle.
func (d *Dispatcher) Status(resource string) Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if s, ok := d.statuses[resource]; ok {
		return s
	}
	return Status{Resource: resource, State: Idle}
}

// Snapshot returns a copy of every recorded status.
func (d *Dispatcher) Snapshot() map[string]Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]Status, len(d.statuses))
	for k, v := range d.statuses {
		out[k] = v
	}
	return out
}

// Reset forgets every recorded status.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.statuses = make(map[string]Status)
	d.mu.Unlock()
}

// RecordSkip counts a command that was decided against before execution.
func (d *Dispatcher) RecordSkip(ctx context.Context, resource, command, reason string) {
	commandsSkipped.WithLabelValues(resource, command, reason).Inc()
	logger.WithContext(ctx, d.logger).DebugContext(ctx, "command skipped",
		slog.String("resource", resource),
		slog.String("command", command),
		slog.String("reason", reason),
	)
}

func (d *Dispatcher) set(resource, command string, state State, err error) {
	s := Status{Resource: resource, Command: command, State: state, UpdatedAt: d.now()}
	if err != nil {
		s.Error = err.Error()
	}
	d.mu.Lock()
	d.statuses[resource] = s
	d.mu.Unlock()
}

// Execute runs cmd through d and returns its outcome verbatim. The error,
// if any, is neither translated nor retried.
func Execute[Req, Resp any](ctx context.Context, d *Dispatcher, cmd Command[Req, Resp], req Req) Outcome[Resp] {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "dispatch."+cmd.Name,
		trace.WithAttributes(
			attribute.String("sync.resource", cmd.Resource),
			attribute.String("sync.command", cmd.Name),
		),
	)

	d.set(cmd.Resource, cmd.Name, InFlight, nil)
	commandsInFlight.WithLabelValues(cmd.Resource).Inc()
	if cmd.OnStart != nil {
		cmd.OnStart(ctx, req)
	}

	start := time.Now()
	resp, err := cmd.Do(ctx, req)
	elapsed := time.Since(start)

	commandsInFlight.WithLabelValues(cmd.Resource).Dec()
	commandDuration.WithLabelValues(cmd.Resource, cmd.Name).Observe(elapsed.Seconds())

	log := logger.WithContext(ctx, d.logger).With(
		slog.String("resource", cmd.Resource),
		slog.String("command", cmd.Name),
		slog.Duration("duration", elapsed),
	)

	if err != nil {
		d.set(cmd.Resource, cmd.Name, Failed, err)
		commandsTotal.WithLabelValues(cmd.Resource, cmd.Name, "failure").Inc()
		log.WarnContext(ctx, "command failed", slog.String("error", err.Error()))
		if cmd.OnFailure != nil {
			cmd.OnFailure(ctx, req, err)
		}
		tracing.EndSpan(span, err)
		return Outcome[Resp]{Resource: cmd.Resource, Command: cmd.Name, Value: resp, Err: err}
	}

	d.set(cmd.Resource, cmd.Name, Succeeded, nil)
	commandsTotal.WithLabelValues(cmd.Resource, cmd.Name, "success").Inc()
	log.DebugContext(ctx, "command succeeded")
	if cmd.OnSuccess != nil {
		cmd.OnSuccess(ctx, req, resp)
	}
	tracing.EndSpan(span, nil)
	return Outcome[Resp]{Resource: cmd.Resource, Command: cmd.Name, Value: resp}
}
