package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReminderStore records which appointment reminders have gone out.
type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

func (s *ReminderStore) WasSent(ctx context.Context, appointmentID, kind string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminder_deliveries WHERE appointment_id = ? AND kind = ?`,
		appointmentID, kind,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check reminder delivery: %w", err)
	}
	return count > 0, nil
}

func (s *ReminderStore) RecordSent(ctx context.Context, appointmentID, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminder_deliveries (appointment_id, kind) VALUES (?, ?)`,
		appointmentID, kind,
	)
	if err != nil {
		return fmt.Errorf("record reminder delivery: %w", err)
	}
	return nil
}

// ForgetAppointment clears delivery history so an edited appointment can be
// reminded again.
func (s *ReminderStore) ForgetAppointment(ctx context.Context, appointmentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reminder_deliveries WHERE appointment_id = ?`, appointmentID)
	if err != nil {
		return fmt.Errorf("clear reminder deliveries: %w", err)
	}
	return nil
}
