package harness

import "github.com/simphotonics/lockattr/internal/ir"

// TraceEvent records one attempted write and its outcome.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Object  string   `json:"object"`
	Attr    string   `json:"attr"`
	Value   ir.Value `json:"-"`
	Outcome string   `json:"outcome"`
	Error   string   `json:"error,omitempty"`
}

// canonical returns the event as a plain map for canonical JSON.
func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"seq":     e.Seq,
		"object":  e.Object,
		"attr":    e.Attr,
		"value":   e.Value,
		"outcome": e.Outcome,
	}
	if e.Value == nil {
		m["value"] = ir.Null{}
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every attempted write in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final stored attributes per object ref.
	State map[string]ir.Map `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]ir.Map),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns how many trace events had the given outcome.
func (r *Result) Count(outcome string) int {
	n := 0
	for _, e := range r.Trace {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}
