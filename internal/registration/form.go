package registration

import (
	"context"
	"errors"
	"sync"

	"yolka-fest/internal/models"
)

type State int

const (
	StateEditing State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrSubmitting   = errors.New("registration is already being submitted")
	ErrNotEditing   = errors.New("form is showing a result; dismiss it first")
	ErrInvalid      = errors.New("registration has missing fields")
	ErrUnknownField = errors.New("unknown form field")
)

// Form is one participant's registration form: its values, field errors and
// submission lifecycle. Nothing can be changed or started while a submission
// is in flight.
type Form struct {
	submitter *Submitter

	mu     sync.Mutex
	state  State
	rec    models.Registration
	errs   models.FieldErrors
	result *models.SubmissionResult
}

func NewForm(submitter *Submitter) *Form {
	return &Form{submitter: submitter, errs: models.FieldErrors{}}
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) Record() models.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.rec
	rec.Nominations = append([]models.Nomination(nil), f.rec.Nominations...)
	return rec
}

func (f *Form) Errors() models.FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(models.FieldErrors, len(f.errs))
	for k, v := range f.errs {
		out[k] = v
	}
	return out
}

// Result is the outcome of the last submission, nil while editing.
func (f *Form) Result() *models.SubmissionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return nil
	}
	r := *f.result
	return &r
}

// editable must be called with mu held.
func (f *Form) editable() error {
	switch f.state {
	case StateSubmitting:
		return ErrSubmitting
	case StateSucceeded:
		return ErrNotEditing
	case StateFailed:
		f.state = StateEditing
	}
	return nil
}

// SetField stores value and drops the field's error without re-validating.
func (f *Form) SetField(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	if !setFieldValue(&f.rec, field, value) {
		return ErrUnknownField
	}
	delete(f.errs, field)
	return nil
}

// ToggleNomination adds n when absent and removes it when present.
func (f *Form) ToggleNomination(n models.Nomination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	noms := make([]models.Nomination, 0, len(f.rec.Nominations)+1)
	found := false
	for _, have := range f.rec.Nominations {
		if have == n {
			found = true
			continue
		}
		noms = append(noms, have)
	}
	if !found {
		noms = append(noms, n)
	}
	f.rec.Nominations = noms
	delete(f.errs, models.FieldNomination)
	return nil
}

// Fill replaces every value at once, as a form post does.
func (f *Form) Fill(rec models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	f.rec = rec
	f.rec.Nominations = append([]models.Nomination(nil), rec.Nominations...)
	f.errs = models.FieldErrors{}
	return nil
}

// Submit validates and, when the form is complete, records it. On success the
// form is cleared; on a ledger failure the values are kept for a retry.
func (f *Form) Submit(ctx context.Context) (models.SubmissionResult, error) {
	f.mu.Lock()
	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return models.SubmissionResult{}, ErrSubmitting
	case StateSucceeded:
		f.mu.Unlock()
		return models.SubmissionResult{}, ErrNotEditing
	}
	f.result = nil
	f.errs = Validate(f.rec)
	if len(f.errs) > 0 {
		f.state = StateEditing
		f.mu.Unlock()
		return models.SubmissionResult{}, ErrInvalid
	}
	f.state = StateSubmitting
	rec := f.rec
	rec.Nominations = append([]models.Nomination(nil), f.rec.Nominations...)
	f.mu.Unlock()

	res, err := f.submitter.Submit(ctx, rec)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = &res
	if err != nil {
		f.state = StateFailed
		return res, err
	}
	f.state = StateSucceeded
	f.rec = models.Registration{}
	return res, nil
}

// Dismiss closes the result: after success the empty form is shown again,
// after a failure the retained values stay editable.
func (f *Form) Dismiss() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateSucceeded || f.state == StateFailed {
		f.state = StateEditing
		f.result = nil
	}
}

// Reset empties the form unless a submission is running.
func (f *Form) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateSubmitting {
		return ErrSubmitting
	}
	f.state = StateEditing
	f.rec = models.Registration{}
	f.errs = models.FieldErrors{}
	f.result = nil
	return nil
}
