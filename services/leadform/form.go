package leadform

import (
	"errors"
	"maps"
	"sync"
	"time"
)

// State is a phase of the capture flow
type State string

const (
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
)

// DefaultResetDwell is how long a form shows Success before clearing itself
const DefaultResetDwell = 3 * time.Second

// ErrSubmissionInFlight is returned when submit is called while a submission is running
var ErrSubmissionInFlight = errors.New("a submission is already in progress")

// ErrShowingConfirmation is returned when submit is called during the Success dwell
var ErrShowingConfirmation = errors.New("form is showing its confirmation")

// Snapshot is what a view layer renders for a form at one moment
type Snapshot struct {
	State       State             `json:"state"`
	Values      map[string]string `json:"values"`
	Errors      FieldErrors       `json:"errors,omitempty"`
	SubmitError string            `json:"submit_error,omitempty"`
	RecordID    string            `json:"record_id,omitempty"`
}

// Form is the state machine for one mounted form instance.
// It is reused indefinitely: Success always falls back to Editing.
type Form struct {
	dwell    time.Duration
	observer func(Snapshot)

	mu         sync.Mutex
	schema     *Schema
	pending    *Schema // applied on the next return to Editing
	state      State
	values     map[string]string
	errors     FieldErrors
	submitErr  string
	recordID   string
	resetTimer *time.Timer
	generation uint64
}

// FormOption configures a Form
type FormOption func(*Form)

// WithDwell sets how long Success is shown before the auto-reset
func WithDwell(d time.Duration) FormOption {
	return func(f *Form) {
		f.dwell = d
	}
}

// WithObserver registers a callback invoked after every transition.
// It runs outside the form lock, in the goroutine that caused the transition.
func WithObserver(fn func(Snapshot)) FormOption {
	return func(f *Form) {
		f.observer = fn
	}
}

// NewForm creates a form in the Editing state with schema defaults filled in
func NewForm(schema *Schema, opts ...FormOption) *Form {
	f := &Form{
		schema: schema,
		dwell:  DefaultResetDwell,
		state:  StateEditing,
		values: schema.Defaults(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Schema returns the field schema the form validates against
func (f *Form) Schema() *Schema {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schema
}

// Rebind switches the form to schema. An editing form switches at once and keeps
// the values of fields that still exist; otherwise the switch waits until the form
// is editable again, so a running submission keeps its guard.
func (f *Form) Rebind(schema *Schema) {
	f.mu.Lock()
	if schema == f.schema {
		f.pending = nil
		f.mu.Unlock()
		return
	}
	if f.state != StateEditing {
		f.pending = schema
		f.mu.Unlock()
		return
	}
	f.pending = schema
	f.applyPendingLocked()
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.notify(snap)
}

// Snapshot returns a copy of the current form state
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// State returns the current phase
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Close stops a pending auto-reset; call it when the form is unmounted.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimerLocked()
}

// begin applies the submit event. Invalid input keeps the form in Editing with
// errors attached and never publishes Submitting.
func (f *Form) begin(raw map[string]string, errs FieldErrors) error {
	f.mu.Lock()
	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return ErrSubmissionInFlight
	case StateSuccess:
		f.mu.Unlock()
		return ErrShowingConfirmation
	}

	f.values = f.mergeValues(raw)
	f.submitErr = ""
	f.recordID = ""
	if len(errs) > 0 {
		f.errors = maps.Clone(errs)
	} else {
		f.errors = nil
		f.state = StateSubmitting
	}
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.notify(snap)
	return nil
}

// succeed moves Submitting to Success and arms the auto-reset
func (f *Form) succeed(recordID string) {
	f.mu.Lock()
	if f.state != StateSubmitting {
		f.mu.Unlock()
		return
	}
	f.state = StateSuccess
	f.recordID = recordID
	f.generation++
	gen := f.generation
	f.stopTimerLocked()
	f.resetTimer = time.AfterFunc(f.dwell, func() { f.reset(gen) })
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.notify(snap)
}

// fail moves Submitting back to Editing, keeping the values for a retry
func (f *Form) fail(submitErr string) {
	f.mu.Lock()
	if f.state != StateSubmitting {
		f.mu.Unlock()
		return
	}
	f.state = StateEditing
	f.submitErr = submitErr
	f.applyPendingLocked()
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.notify(snap)
}

// cancel returns an abandoned submission to Editing without an error banner
func (f *Form) cancel() {
	f.fail("")
}

// reset is the timeoutElapsed transition. Stale timers are ignored.
func (f *Form) reset(gen uint64) {
	f.mu.Lock()
	if f.state != StateSuccess || f.generation != gen {
		f.mu.Unlock()
		return
	}
	f.state = StateEditing
	f.applyPendingLocked()
	f.values = f.schema.Defaults()
	f.errors = nil
	f.submitErr = ""
	f.recordID = ""
	f.resetTimer = nil
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.notify(snap)
}

func (f *Form) mergeValues(raw map[string]string) map[string]string {
	values := f.schema.Defaults()
	for name := range values {
		if v, ok := raw[name]; ok && v != "" {
			values[name] = v
		}
	}
	return values
}

func (f *Form) applyPendingLocked() {
	if f.pending == nil {
		return
	}
	f.schema = f.pending
	f.pending = nil
	f.values = f.mergeValues(f.values)
	for name := range f.errors {
		if _, ok := f.schema.Field(name); !ok {
			delete(f.errors, name)
		}
	}
}

func (f *Form) stopTimerLocked() {
	if f.resetTimer != nil {
		f.resetTimer.Stop()
		f.resetTimer = nil
	}
}

func (f *Form) snapshotLocked() Snapshot {
	return Snapshot{
		State:       f.state,
		Values:      maps.Clone(f.values),
		Errors:      maps.Clone(f.errors),
		SubmitError: f.submitErr,
		RecordID:    f.recordID,
	}
}

func (f *Form) notify(snap Snapshot) {
	if f.observer != nil {
		f.observer(snap)
	}
}
