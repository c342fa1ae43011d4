package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/bloom/internal/model"
)

func setupAppointmentStore(t *testing.T) (*AppointmentStore, string) {
	t.Helper()
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice@example.com")
	return NewAppointmentStore(db), u.ID
}

func TestAppointmentCreateThenList(t *testing.T) {
	s, owner := setupAppointmentStore(t)
	ctx := context.Background()

	fields := model.AppointmentFields{
		Title:    "Ultrasound",
		Date:     "2025-03-01",
		Time:     "10:30",
		Notes:    "Bring referral",
		Reminder: true,
	}
	created, err := s.Create(ctx, owner, fields)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Version != 1 {
		t.Errorf("version = %d, want 1", created.Version)
	}

	all, err := s.ListByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len = %d, want 1", len(all))
	}
	if got := all[0].Fields(); got != fields {
		t.Errorf("fields = %+v, want %+v", got, fields)
	}
	if all[0].OwnerID != owner {
		t.Errorf("owner = %q, want %q", all[0].OwnerID, owner)
	}
}

func TestAppointmentListOrderedByDate(t *testing.T) {
	s, owner := setupAppointmentStore(t)
	ctx := context.Background()

	for _, f := range []model.AppointmentFields{
		{Title: "c", Date: "2025-03-02"},
		{Title: "a", Date: "2025-03-01"},
		{Title: "b", Date: "2025-03-01"},
	} {
		if _, err := s.Create(ctx, owner, f); err != nil {
			t.Fatalf("create %s: %v", f.Title, err)
		}
	}

	all, err := s.ListByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var titles string
	for _, a := range all {
		titles += a.Title
	}
	if titles != "abc" {
		t.Errorf("order = %q, want %q", titles, "abc")
	}
}

func TestAppointmentListScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	s := NewAppointmentStore(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	ctx := context.Background()

	a, _ := s.Create(ctx, alice.ID, model.AppointmentFields{Title: "Alice", Date: "2025-01-01"})
	s.Create(ctx, bob.ID, model.AppointmentFields{Title: "Bob", Date: "2025-01-01"})

	all, _ := s.ListByOwner(ctx, alice.ID)
	if len(all) != 1 || all[0].ID != a.ID {
		t.Fatalf("alice sees %d appointments, want only her own", len(all))
	}

	got, err := s.GetByID(ctx, bob.ID, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("bob must not read alice's appointment")
	}
}

func TestAppointmentListBetween(t *testing.T) {
	s, owner := setupAppointmentStore(t)
	ctx := context.Background()

	for _, d := range []string{"2025-02-28", "2025-03-01", "2025-03-31", "2025-04-01"} {
		s.Create(ctx, owner, model.AppointmentFields{Title: d, Date: d})
	}

	got, err := s.ListByOwnerBetween(ctx, owner, "2025-03-01", "2025-03-31")
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Date != "2025-03-01" || got[1].Date != "2025-03-31" {
		t.Errorf("dates = %s, %s", got[0].Date, got[1].Date)
	}
}

func TestAppointmentUpdateOverwritesFields(t *testing.T) {
	s, owner := setupAppointmentStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, owner, model.AppointmentFields{Title: "Old", Date: "2025-01-01", Time: "09:00", Notes: "n", Reminder: true})

	next := model.AppointmentFields{Title: "New", Date: "2025-02-02", Time: "14:15", Notes: "", Reminder: false}
	got, err := s.Update(ctx, owner, a.ID, a.Version, next)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Fields() != next {
		t.Errorf("fields = %+v, want %+v", got.Fields(), next)
	}
	if got.Version != a.Version+1 {
		t.Errorf("version = %d, want %d", got.Version, a.Version+1)
	}
	if got.ID != a.ID || got.OwnerID != owner {
		t.Error("id and owner must not change")
	}
}

func TestAppointmentUpdateStaleVersion(t *testing.T) {
	s, owner := setupAppointmentStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, owner, model.AppointmentFields{Title: "Visit", Date: "2025-01-01"})
	if _, err := s.Update(ctx, owner, a.ID, a.Version, model.AppointmentFields{Title: "First", Date: "2025-01-01"}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err := s.Update(ctx, owner, a.ID, a.Version, model.AppointmentFields{Title: "Second", Date: "2025-01-01"})
	if !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("err = %v, want ErrStaleVersion", err)
	}

	got, _ := s.GetByID(ctx, owner, a.ID)
	if got.Title != "First" {
		t.Errorf("title = %q, want %q", got.Title, "First")
	}
}

func TestAppointmentUpdateUnconditional(t *testing.T) {
	s, owner := setupAppointmentStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, owner, model.AppointmentFields{Title: "Visit", Date: "2025-01-01"})
	s.Update(ctx, owner, a.ID, 0, model.AppointmentFields{Title: "One", Date: "2025-01-01"})
	got, err := s.Update(ctx, owner, a.ID, 0, model.AppointmentFields{Title: "Two", Date: "2025-01-01"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Two" {
		t.Errorf("title = %q, want %q", got.Title, "Two")
	}
}

func TestAppointmentUpdateNotFound(t *testing.T) {
	s, owner := setupAppointmentStore(t)

	got, err := s.Update(context.Background(), owner, "missing", 0, model.AppointmentFields{Title: "x", Date: "2025-01-01"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent appointment")
	}
}

func TestAppointmentDeleteExactlyOne(t *testing.T) {
	s, owner := setupAppointmentStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, owner, model.AppointmentFields{Title: "a", Date: "2025-01-01"})
	b, _ := s.Create(ctx, owner, model.AppointmentFields{Title: "b", Date: "2025-01-01"})

	n, err := s.Delete(ctx, owner, a.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	all, _ := s.ListByOwner(ctx, owner)
	if len(all) != 1 || all[0].ID != b.ID {
		t.Fatalf("remaining = %+v, want only %q", all, b.ID)
	}

	n, err = s.Delete(ctx, owner, a.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0 for missing id", n)
	}
}

func TestAppointmentListWithReminderOn(t *testing.T) {
	s, owner := setupAppointmentStore(t)
	ctx := context.Background()

	s.Create(ctx, owner, model.AppointmentFields{Title: "on", Date: "2025-05-05", Reminder: true})
	s.Create(ctx, owner, model.AppointmentFields{Title: "off", Date: "2025-05-05", Reminder: false})
	s.Create(ctx, owner, model.AppointmentFields{Title: "other day", Date: "2025-05-06", Reminder: true})

	got, err := s.ListWithReminderOn(ctx, "2025-05-05")
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(got) != 1 || got[0].Title != "on" {
		t.Errorf("got %+v, want only %q", got, "on")
	}
}
