package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	User    string `json:"user,omitempty"`
	Target  string `json:"target,omitempty"`
	Outcome string `json:"outcome"`
}

// OutcomeOK marks a step that returned no error.
const OutcomeOK = "ok"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every step in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the end state of every labelled transaction, keyed by label.
	Final map[string]TxState `json:"final"`
}

// TxState is a transaction as the scenario's users see it.
type TxState struct {
	Type      string                      `json:"type"`
	Committed *ProjectionState            `json:"committed,omitempty"`
	Pending   map[string]*ProjectionState `json:"pending,omitempty"`
}

// ProjectionState is a projection with IDs replaced by scenario names.
type ProjectionState struct {
	Description    string            `json:"description"`
	Value          string            `json:"value"`
	CurrencySymbol string            `json:"currency_symbol"`
	BilledAt       string            `json:"billed_at"`
	Deleted        bool              `json:"deleted"`
	Creditors      map[string]string `json:"creditors,omitempty"`
	Debitors       map[string]string `json:"debitors,omitempty"`
	Positions      []PositionState   `json:"positions,omitempty"`
	Files          []string          `json:"files,omitempty"`
}

// PositionState is a purchase item with IDs replaced by scenario names.
type PositionState struct {
	Item            string            `json:"item"`
	Name            string            `json:"name"`
	Price           string            `json:"price"`
	CommunistShares string            `json:"communist_shares"`
	Deleted         bool              `json:"deleted"`
	Usages          map[string]string `json:"usages,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  map[string]TxState{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(op, user, target, outcome string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     len(r.Trace) + 1,
		Op:      op,
		User:    user,
		Target:  target,
		Outcome: outcome,
	})
}
