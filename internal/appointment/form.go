package appointment

import (
	"errors"
	"strings"
	"time"

	"github.com/dukerupert/bloom/internal/model"
)

// DefaultTime is the time pre-filled into a fresh appointment form.
const DefaultTime = "09:00"

// Form is the state of the create/edit appointment form.
type Form struct {
	Title          string
	Date           string
	Time           string
	Notes          string
	Reminder       bool
	EditingID      string
	EditingVersion int64
}

// ResetForm returns an empty form dated on now's calendar day.
func ResetForm(now time.Time) Form {
	return Form{
		Date:     DateKey(now),
		Time:     DefaultTime,
		Reminder: true,
	}
}

// FormFromAppointment loads a for editing.
func FormFromAppointment(a model.Appointment) Form {
	return Form{
		Title:          a.Title,
		Date:           a.Date,
		Time:           a.Time,
		Notes:          a.Notes,
		Reminder:       a.Reminder,
		EditingID:      a.ID,
		EditingVersion: a.Version,
	}
}

func (f Form) Editing() bool {
	return f.EditingID != ""
}

func (f Form) Fields() model.AppointmentFields {
	return model.AppointmentFields{
		Title:    f.Title,
		Date:     f.Date,
		Time:     f.Time,
		Notes:    f.Notes,
		Reminder: f.Reminder,
	}
}

var (
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime   = errors.New("time must be HH:MM")
)

// Normalize trims f and checks that the title, date and time are usable.
// An empty time is allowed.
func Normalize(f model.AppointmentFields) (model.AppointmentFields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Date = strings.TrimSpace(f.Date)
	f.Time = strings.TrimSpace(f.Time)
	f.Notes = strings.TrimSpace(f.Notes)

	if f.Title == "" {
		return f, ErrTitleRequired
	}
	d, err := time.Parse(model.DateLayout, f.Date)
	if err != nil {
		return f, ErrInvalidDate
	}
	f.Date = d.Format(model.DateLayout)
	if f.Time != "" {
		t, err := time.Parse("15:04", f.Time)
		if err != nil {
			return f, ErrInvalidTime
		}
		f.Time = t.Format("15:04")
	}
	return f, nil
}
