package dispatch

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/storefront-sync/pkg/logger"
	"github.com/utafrali/storefront-sync/pkg/tracing"
)

// StepFunc is one link of a workflow. prev is nil for the first step.
// Returning nil keeps prev as the workflow's current result.
type StepFunc func(ctx context.Context, prev Result) Result

// Step is a named StepFunc.
type Step struct {
	Name string
	Run  StepFunc
}

// Workflow runs steps in order and stops at the first failed result,
// which is returned unchanged.
type Workflow struct {
	name   string
	steps  []Step
	logger *slog.Logger
}

// NewWorkflow creates an empty workflow.
func NewWorkflow(name string, l *slog.Logger) *Workflow {
	if l == nil {
		l = slog.Default()
	}
	return &Workflow{name: name, logger: l}
}

// Then appends a step.
func (w *Workflow) Then(name string, fn StepFunc) *Workflow {
	w.steps = append(w.steps, Step{Name: name, Run: fn})
	return w
}

// Steps returns the step names in order.
func (w *Workflow) Steps() []string {
	names := make([]string, len(w.steps))
	for i, s := range w.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes the workflow.
func (w *Workflow) Run(ctx context.Context) Result {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "workflow."+w.name)

	var current Result
	for i, step := range w.steps {
		next := step.Run(ctx, current)
		if next != nil {
			current = next
		}
		if current != nil && current.Failed() {
			logger.WithContext(ctx, w.logger).InfoContext(ctx, "workflow stopped",
				slog.String("workflow", w.name),
				slog.String("step", step.Name),
				slog.Int("remaining", len(w.steps)-i-1),
			)
			tracing.EndSpan(span, current.Cause(), attribute.String("sync.failed_step", step.Name))
			return current
		}
	}

	tracing.EndSpan(span, nil, attribute.Int("sync.steps", len(w.steps)))
	return current
}
