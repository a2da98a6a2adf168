package harness

import "github.com/roach88/vidindex/internal/ir"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held and replay was deterministic.
	Pass bool `json:"pass"`

	// Applied counts events processed without error, duplicates included.
	Applied int `json:"applied"`

	// Failure is the event that stopped the run, if any.
	Failure *Failure `json:"failure,omitempty"`

	// Checkpoint is the last applied position.
	Checkpoint ir.Position `json:"checkpoint"`

	// Digest is the snapshot digest of the final store.
	Digest string `json:"digest"`

	Errors []string `json:"errors,omitempty"`

	// Snapshot is the final entity state, used for golden comparison.
	Snapshot ir.IRObject `json:"-"`
}

// Failure records the event that halted a run.
type Failure struct {
	Event   int    `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
