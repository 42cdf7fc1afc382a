package harness

// TraceOutcome is one task change recorded during a step.
type TraceOutcome struct {
	TaskID      string `json:"task_id"`
	Action      string `json:"action"`
	Status      string `json:"status,omitempty"`
	Notified    string `json:"notified,omitempty"`
	Error       string `json:"error,omitempty"`        // store failure; the change did not happen
	NotifyError string `json:"notify_error,omitempty"` // dispatch failure; the change stands
}

// TraceEvent records what one scenario step did.
type TraceEvent struct {
	Seq      int            `json:"seq"`
	Op       string         `json:"op"`
	TaskID   string         `json:"task_id,omitempty"`
	Error    string         `json:"error,omitempty"` // aborting error code, or task action failure
	Outcomes []TraceOutcome `json:"outcomes"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Notifications lists sent events in dispatch order.
	Notifications []SentNotification `json:"notifications"`
}

// SentNotification is a message the sink accepted.
type SentNotification struct {
	TaskID      string `json:"task_id"`
	Event       string `json:"event"`
	Destination string `json:"destination"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:          true,
		Trace:         []TraceEvent{},
		Errors:        []string{},
		Notifications: []SentNotification{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
