package pipeline

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/materialize"
)

// MessageError ties a failure to the message that caused it.
type MessageError struct {
	EmailID string
	Err     error
}

func (e MessageError) Error() string {
	return fmt.Sprintf("email %s: %v", e.EmailID, e.Err)
}

func (e MessageError) Unwrap() error { return e.Err }

// Report summarizes one user's sync run. Synced counts created purchases;
// the other counters count messages.
type Report struct {
	UserID   string
	Synced   int
	Created  int
	Ignored  int
	NotOrder int
	Failed   int
	Skipped  int
	Errors   []MessageError
}

// Processed is the number of messages that reached a terminal result in this run.
func (r Report) Processed() int {
	return r.Created + r.Ignored + r.NotOrder + r.Failed
}

// Err joins the per-message errors, or returns nil.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func (r *Report) tally(out materialize.Outcome) {
	switch out.Result {
	case constants.ResultCreatedPurchase:
		r.Created++
		r.Synced += len(out.Purchases)
	case constants.ResultIgnored:
		r.Ignored++
	case constants.ResultNotOrder:
		r.NotOrder++
	case constants.ResultFailed:
		r.Failed++
	}
}

func (r *Report) fail(emailID string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, MessageError{EmailID: emailID, Err: err})
}
