// Package calendar exports appointments as iCalendar data, both as a
// subscribable feed and as objects mirrored to a CalDAV server.
package calendar

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/dukerupert/bloom/internal/model"
)

const (
	productID     = "-//Bloom//Appointments//EN"
	eventDuration = time.Hour
	timeLayout    = "15:04"
)

// UID returns the iCalendar UID of an appointment.
func UID(a model.Appointment) string {
	return a.ID + "@bloom"
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

// Event converts an appointment to a VEVENT. The appointment's date and time
// are read as wall-clock values in loc. An empty or unparsable time yields an
// all-day event.
func Event(a model.Appointment, loc *time.Location, stamp time.Time) (*ical.Event, error) {
	day, err := time.ParseInLocation(model.DateLayout, a.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("parse appointment date: %w", err)
	}

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, UID(a))
	vevent.Props.SetText(ical.PropSummary, a.Title)
	if a.Notes != "" {
		vevent.Props.SetText(ical.PropDescription, a.Notes)
	}

	if clock, err := time.Parse(timeLayout, a.Time); err == nil {
		start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		vevent.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(eventDuration).UTC())
	} else {
		vevent.Props.SetDate(ical.PropDateTimeStart, day)
		vevent.Props.SetDate(ical.PropDateTimeEnd, day.AddDate(0, 0, 1))
	}

	if a.Reminder {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, a.Title)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.SetValueType(ical.ValueDuration)
		trigger.Value = "-P1D"
		alarm.Props.Set(trigger)
		vevent.Children = append(vevent.Children, alarm)
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	return vevent, nil
}

// Feed builds a calendar holding every appointment. Appointments with a
// malformed date are skipped.
func Feed(appts []model.Appointment, loc *time.Location, stamp time.Time) *ical.Calendar {
	cal := newCalendar()
	cal.Props.SetText("X-WR-CALNAME", "Bloom appointments")
	for _, a := range appts {
		vevent, err := Event(a, loc, stamp)
		if err != nil {
			continue
		}
		cal.Children = append(cal.Children, vevent.Component)
	}
	return cal
}

// Single wraps one appointment in its own calendar object.
func Single(a model.Appointment, loc *time.Location, stamp time.Time) (*ical.Calendar, error) {
	vevent, err := Event(a, loc, stamp)
	if err != nil {
		return nil, err
	}
	cal := newCalendar()
	cal.Children = append(cal.Children, vevent.Component)
	return cal, nil
}

// Encode writes cal to w.
func Encode(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// Serialize returns cal as a string.
func Serialize(cal *ical.Calendar) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, cal); err != nil {
		return "", err
	}
	return buf.String(), nil
}
