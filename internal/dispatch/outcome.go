package dispatch

// Meta describes where a result came from.
type Meta struct {
	Resource string `json:"resource"`
	Command  string `json:"command"`
	Skipped  bool   `json:"skipped,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Result is what every command outcome exposes to workflows and handlers.
type Result interface {
	Failed() bool
	Cause() error
	Data() any
	Meta() Meta
}

// Outcome is the result of one command execution. A skipped outcome
// carries whatever the caller chose to hand back (usually cached data)
// and never an error.
type Outcome[T any] struct {
	Resource string
	Command  string
	Value    T
	Err      error
	Skipped  bool
	Reason   string
}

// Failed reports whether the outcome carries an error.
func (o Outcome[T]) Failed() bool { return o.Err != nil }

// Cause returns the carried error, or nil.
func (o Outcome[T]) Cause() error { return o.Err }

// Data returns Value as any.
func (o Outcome[T]) Data() any { return o.Value }

// Meta returns the outcome's provenance.
func (o Outcome[T]) Meta() Meta {
	return Meta{Resource: o.Resource, Command: o.Command, Skipped: o.Skipped, Reason: o.Reason}
}

// Skip builds the outcome of a command that was not executed.
func Skip[T any](resource, command string, value T, reason string) Outcome[T] {
	return Outcome[T]{
		Resource: resource,
		Command:  command,
		Value:    value,
		Skipped:  true,
		Reason:   reason,
	}
}

// Fail builds a failed outcome without running anything.
func Fail[T any](resource, command string, err error) Outcome[T] {
	return Outcome[T]{Resource: resource, Command: command, Err: err}
}
