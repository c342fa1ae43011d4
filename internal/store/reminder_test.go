package store

import (
	"context"
	"testing"

	"github.com/dukerupert/bloom/internal/model"
)

func TestReminderDeliveries(t *testing.T) {
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice@example.com")
	as := NewAppointmentStore(db)
	rs := NewReminderStore(db)
	ctx := context.Background()

	a, _ := as.Create(ctx, u.ID, model.AppointmentFields{Title: "Scan", Date: "2025-01-01", Reminder: true})

	sent, err := rs.WasSent(ctx, a.ID, model.ReminderSameDay)
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if sent {
		t.Error("expected not sent")
	}

	if err := rs.RecordSent(ctx, a.ID, model.ReminderSameDay); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rs.RecordSent(ctx, a.ID, model.ReminderSameDay); err != nil {
		t.Fatalf("duplicate record should be ignored: %v", err)
	}

	sent, _ = rs.WasSent(ctx, a.ID, model.ReminderSameDay)
	if !sent {
		t.Error("expected sent")
	}
	sent, _ = rs.WasSent(ctx, a.ID, model.ReminderDayBefore)
	if sent {
		t.Error("day-before reminder should be tracked separately")
	}

	if err := rs.ForgetAppointment(ctx, a.ID); err != nil {
		t.Fatalf("forget: %v", err)
	}
	sent, _ = rs.WasSent(ctx, a.ID, model.ReminderSameDay)
	if sent {
		t.Error("expected history cleared")
	}
}
