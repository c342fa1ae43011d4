package appointment

import (
	"errors"
	"sync"
	"time"

	"github.com/dukerupert/bloom/internal/model"
)

// ErrDeletePending is returned when a delete is requested while another
// appointment is still awaiting confirmation.
var ErrDeletePending = errors.New("another delete is awaiting confirmation")

// View is the appointment screen state owned by one signed-in session.
type View struct {
	Form            Form
	DialogOpen      bool
	Message         string
	MessageIsError  bool
	SelectedDate    string
	PendingDeleteID string
}

func NewView(now time.Time) View {
	return View{
		Form:         ResetForm(now),
		SelectedDate: DateKey(now),
	}
}

func (v *View) OpenNew(now time.Time) {
	v.Form = ResetForm(now)
	if v.SelectedDate != "" {
		v.Form.Date = v.SelectedDate
	}
	v.DialogOpen = true
}

func (v *View) OpenEdit(a model.Appointment) {
	v.Form = FormFromAppointment(a)
	v.DialogOpen = true
}

// Close hides the dialog and resets the form.
func (v *View) Close(now time.Time) {
	v.Form = ResetForm(now)
	v.DialogOpen = false
}

func (v *View) Succeed(msg string, now time.Time) {
	v.Close(now)
	v.Message = msg
	v.MessageIsError = false
}

// Fail keeps the form as submitted so the user can correct and resubmit.
func (v *View) Fail(msg string) {
	v.Message = msg
	v.MessageIsError = true
}

func (v *View) ClearMessage() {
	v.Message = ""
	v.MessageIsError = false
}

// RequestDelete marks id as awaiting confirmation. Re-requesting the pending
// id is allowed; any other id is refused until the pending one is resolved.
func (v *View) RequestDelete(id string) error {
	if v.PendingDeleteID != "" && v.PendingDeleteID != id {
		return ErrDeletePending
	}
	v.PendingDeleteID = id
	return nil
}

func (v *View) CancelDelete() {
	v.PendingDeleteID = ""
}

// DeleteBlocked reports whether the delete action for id should be disabled.
func (v View) DeleteBlocked(id string) bool {
	return v.PendingDeleteID != "" && v.PendingDeleteID != id
}

// Views holds one View per session key.
type Views struct {
	mu    sync.Mutex
	views map[string]*View
	seen  map[string]time.Time
	now   func() time.Time
}

func NewViews(now func() time.Time) *Views {
	if now == nil {
		now = time.Now
	}
	return &Views{
		views: make(map[string]*View),
		seen:  make(map[string]time.Time),
		now:   now,
	}
}

// Get returns a copy of the view for key.
func (vs *Views) Get(key string) View {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return *vs.lookup(key)
}

// Update applies fn to the view for key and returns the resulting copy.
// Changes made by fn are kept even when it returns an error.
func (vs *Views) Update(key string, fn func(v *View, now time.Time) error) (View, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	v := vs.lookup(key)
	err := fn(v, vs.now())
	return *v, err
}

func (vs *Views) Drop(key string) {
	vs.mu.Lock()
	delete(vs.views, key)
	delete(vs.seen, key)
	vs.mu.Unlock()
}

// Prune drops views that have not been touched for longer than idle and
// reports how many were removed.
func (vs *Views) Prune(idle time.Duration) int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	cutoff := vs.now().Add(-idle)
	n := 0
	for key, at := range vs.seen {
		if at.Before(cutoff) {
			delete(vs.views, key)
			delete(vs.seen, key)
			n++
		}
	}
	return n
}

func (vs *Views) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.views)
}

func (vs *Views) lookup(key string) *View {
	now := vs.now()
	vs.seen[key] = now
	v, ok := vs.views[key]
	if !ok {
		nv := NewView(now)
		v = &nv
		vs.views[key] = v
	}
	return v
}
