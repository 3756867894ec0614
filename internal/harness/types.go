package harness

import "github.com/roach88/distance/internal/sink"

// Result is the outcome of one scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors holds one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	Events  []sink.Event  `json:"events"`
	Records []sink.Record `json:"records"`
	Firings []sink.Firing `json:"firings"`
	Summary sink.Summary  `json:"summary"`

	// Facts counts final working memory per type.
	Facts map[string]int `json:"facts"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Facts:  make(map[string]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
