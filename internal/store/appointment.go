package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/bloom/internal/model"
	"github.com/google/uuid"
)

// ErrStaleVersion is returned by Update when the stored version no longer
// matches the version the caller edited.
var ErrStaleVersion = errors.New("appointment was changed by someone else")

type AppointmentStore struct {
	db *sql.DB
}

func NewAppointmentStore(db *sql.DB) *AppointmentStore {
	return &AppointmentStore{db: db}
}

func scanAppointment(scanner interface{ Scan(...any) error }) (*model.Appointment, error) {
	var a model.Appointment
	var reminder int
	err := scanner.Scan(&a.ID, &a.OwnerID, &a.Title, &a.Date, &a.Time, &a.Notes, &reminder, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Reminder = reminder != 0
	return &a, nil
}

const appointmentCols = `id, user_id, title, date, time, notes, reminder, version, created_at, updated_at`

// Rows with equal dates come back in insertion order.
const appointmentOrder = ` ORDER BY date ASC, created_at ASC, rowid ASC`

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *AppointmentStore) Create(ctx context.Context, ownerID string, f model.AppointmentFields) (*model.Appointment, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (id, user_id, title, date, time, notes, reminder) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, f.Title, f.Date, f.Time, f.Notes, boolToInt(f.Reminder),
	)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return s.GetByID(ctx, ownerID, id)
}

// GetByID returns the owner's appointment, or nil if it does not exist or
// belongs to someone else.
func (s *AppointmentStore) GetByID(ctx context.Context, ownerID, id string) (*model.Appointment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = ? AND user_id = ?`,
		id, ownerID,
	)
	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *AppointmentStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE user_id = ?`+appointmentOrder, ownerID)
}

// ListByOwnerBetween returns the owner's appointments with from <= date <= to.
func (s *AppointmentStore) ListByOwnerBetween(ctx context.Context, ownerID, from, to string) ([]model.Appointment, error) {
	return s.list(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE user_id = ? AND date >= ? AND date <= ?`+appointmentOrder,
		ownerID, from, to,
	)
}

// ListWithReminderOn returns every appointment on date that has its reminder flag set.
func (s *AppointmentStore) ListWithReminderOn(ctx context.Context, date string) ([]model.Appointment, error) {
	return s.list(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE date = ? AND reminder = 1`+appointmentOrder,
		date,
	)
}

func (s *AppointmentStore) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, *a)
	}
	return appts, rows.Err()
}

// Update overwrites every editable field. A non-zero expectedVersion must
// match the stored version or ErrStaleVersion is returned. Returns nil when
// the appointment does not exist for this owner.
func (s *AppointmentStore) Update(ctx context.Context, ownerID, id string, expectedVersion int64, f model.AppointmentFields) (*model.Appointment, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE appointments
		 SET title = ?, date = ?, time = ?, notes = ?, reminder = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ? AND (? = 0 OR version = ?)`,
		f.Title, f.Date, f.Time, f.Notes, boolToInt(f.Reminder), id, ownerID, expectedVersion, expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		existing, err := s.GetByID(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, nil
		}
		return nil, ErrStaleVersion
	}
	return s.GetByID(ctx, ownerID, id)
}

// Delete removes the owner's appointment and reports how many rows went away.
// Deleting a missing id is not an error.
func (s *AppointmentStore) Delete(ctx context.Context, ownerID, id string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete appointment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
