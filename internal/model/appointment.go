package model

import "time"

// DateLayout is the canonical key format for appointment dates.
const DateLayout = "2006-01-02"

type Appointment struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"user_id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Notes     string    `json:"notes"`
	Reminder  bool      `json:"reminder"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppointmentFields holds the user-editable columns of an appointment.
type AppointmentFields struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
	Reminder bool   `json:"reminder"`
}

// Fields returns the editable part of a.
func (a Appointment) Fields() AppointmentFields {
	return AppointmentFields{
		Title:    a.Title,
		Date:     a.Date,
		Time:     a.Time,
		Notes:    a.Notes,
		Reminder: a.Reminder,
	}
}
