package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/simphotonics/lockattr/internal/guard"
	"github.com/simphotonics/lockattr/internal/ir"
	"github.com/simphotonics/lockattr/internal/policy"
	"github.com/simphotonics/lockattr/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	target  target
	backend string
	clock   *testutil.DeterministicClock
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger for step and rejection messages.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithBackend overrides the scenario's backend (BackendStore or
// BackendMemory).
func WithBackend(backend string) Option {
	return func(h *Harness) { h.backend = backend }
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh object space, so runs are isolated and repeatable.
// A non-nil error means the scenario could not be executed at all; failed
// expectations are reported in Result.Errors instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	set, err := policy.Load(scenario.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	h := &Harness{
		backend: scenario.Backend,
		clock:   testutil.NewDeterministicClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.backend == "" {
		h.backend = BackendStore
	}

	h.target, err = newTarget(context.Background(), h.backend, set, h.logger)
	if err != nil {
		return nil, err
	}
	defer h.target.close()

	for _, decl := range scenario.Objects {
		if err := h.target.create(decl.Ref, decl.Kind); err != nil {
			return nil, fmt.Errorf("failed to create object %q: %w", decl.Ref, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(i, step, result)
	}

	for _, msg := range evaluateAssertions(scenario.Assertions, h.target) {
		result.AddError(msg)
	}

	for _, decl := range scenario.Objects {
		attrs, err := h.target.state(decl.Ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read final state of %q: %w", decl.Ref, err)
		}
		result.State[decl.Ref] = attrs
	}

	return result, nil
}

// executeStep applies one write and checks its expect clause.
func (h *Harness) executeStep(i int, step Step, result *Result) {
	seq := h.clock.Next()

	event := TraceEvent{
		Seq:    seq,
		Object: step.Set,
		Attr:   step.Attr,
	}
	if v, err := ir.FromAny(step.Value); err == nil {
		event.Value = v
	}

	err := h.target.setAttr(step.Set, step.Attr, step.Value)
	switch {
	case err == nil:
		event.Outcome = OutcomeOK
	case guard.IsProtectedError(err):
		event.Outcome = OutcomeProtected
		event.Error = err.Error()
	default:
		event.Outcome = OutcomeError
		event.Error = err.Error()
	}
	result.Trace = append(result.Trace, event)

	h.logger.Debug("step executed",
		"step", i,
		"backend", h.backend,
		"object", step.Set,
		"attr", step.Attr,
		"outcome", event.Outcome,
	)

	if step.Expect != "" && step.Expect != event.Outcome {
		msg := fmt.Sprintf("steps[%d] %s.%s: expected %s, got %s", i, step.Set, step.Attr, step.Expect, event.Outcome)
		if event.Error != "" {
			msg += ": " + event.Error
		}
		result.AddError(msg)
	}
}
