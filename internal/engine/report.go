package engine

import (
	"errors"

	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
)

// Outcome records what happened to one task during a pass.
type Outcome struct {
	Flag   string       `json:"flag,omitempty"`
	TaskID string       `json:"task_id"`
	Action Action       `json:"action"`
	Status model.Status `json:"status,omitempty"`

	// Notified is the event sent for this step, empty if none was sent.
	Notified notify.Event `json:"notified,omitempty"`

	// Err is a store failure; the step's mutation did not happen.
	Err error `json:"-"`

	// NotifyErr is a dispatch failure; the mutation stands.
	NotifyErr error `json:"-"`
}

// Failed reports whether the step's store operation failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Report summarizes a Reconcile, Propagate or Sync call.
type Report struct {
	Partition          model.Partition `json:"partition"`
	SubjectID          string          `json:"subject_id"`
	CatalogFingerprint string          `json:"catalog_fingerprint,omitempty"`
	Outcomes           []Outcome       `json:"outcomes"`
}

// Err joins every per-step store failure. A nil result means every step
// was applied. Notification failures are excluded; see NotifyErr.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// NotifyErr joins every notification failure.
func (r *Report) NotifyErr() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.NotifyErr != nil {
			errs = append(errs, o.NotifyErr)
		}
	}
	return errors.Join(errs...)
}

// Changed counts steps that mutated a task.
func (r *Report) Changed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action.Mutates() && o.Err == nil {
			n++
		}
	}
	return n
}

// Find returns the outcome for taskID with the given action.
func (r *Report) Find(taskID string, action Action) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.TaskID == taskID && o.Action == action {
			return o, true
		}
	}
	return Outcome{}, false
}

// ByFlag returns the first outcome recorded for flag.
func (r *Report) ByFlag(flag string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Flag == flag {
			return o, true
		}
	}
	return Outcome{}, false
}
