package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/bloom/internal/database"
	"github.com/dukerupert/bloom/internal/model"
	"github.com/dukerupert/bloom/internal/store"
)

func setupBook(t *testing.T) (*Book, *store.AppointmentStore, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	s := store.NewAppointmentStore(db)
	return NewBook(s, u.ID), s, u.ID
}

// failingBackend wraps a Backend and fails the selected operations.
type failingBackend struct {
	Backend
	failCreate bool
	failList   bool
	calls      map[string]int
}

func (f *failingBackend) count(op string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

func (f *failingBackend) ListByOwner(ctx context.Context, owner string) ([]model.Appointment, error) {
	f.count("list")
	if f.failList {
		return nil, errors.New("list failed")
	}
	return f.Backend.ListByOwner(ctx, owner)
}

func (f *failingBackend) Create(ctx context.Context, owner string, fields model.AppointmentFields) (*model.Appointment, error) {
	f.count("create")
	if f.failCreate {
		return nil, errors.New("duplicate key value violates constraint")
	}
	return f.Backend.Create(ctx, owner, fields)
}

func (f *failingBackend) Delete(ctx context.Context, owner, id string) (int64, error) {
	f.count("delete")
	return f.Backend.Delete(ctx, owner, id)
}

func TestBookCreateRefetches(t *testing.T) {
	book, _, _ := setupBook(t)
	ctx := context.Background()

	fields := model.AppointmentFields{Title: "Glucose test", Date: "2025-06-01", Time: "11:00", Notes: "fasting", Reminder: true}
	created, err := book.Create(ctx, fields)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	all := book.Appointments()
	if len(all) != 1 {
		t.Fatalf("local len = %d, want 1", len(all))
	}
	if all[0].ID != created.ID || all[0].Fields() != fields {
		t.Errorf("local record = %+v, want fields %+v", all[0], fields)
	}
}

func TestBookCreateFailureLeavesState(t *testing.T) {
	_, s, owner := setupBook(t)
	ctx := context.Background()
	s.Create(ctx, owner, model.AppointmentFields{Title: "Existing", Date: "2025-01-01"})

	fb := &failingBackend{Backend: s, failCreate: true}
	book := NewBook(fb, owner)
	if err := book.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	_, err := book.Create(ctx, model.AppointmentFields{Title: "New", Date: "2025-01-02"})
	if err == nil || err.Error() != "duplicate key value violates constraint" {
		t.Fatalf("err = %v, want backend message", err)
	}
	if got := book.Appointments(); len(got) != 1 || got[0].Title != "Existing" {
		t.Errorf("local state changed: %+v", got)
	}
	if fb.calls["list"] != 1 {
		t.Errorf("list calls = %d, want 1 (no re-fetch after failure)", fb.calls["list"])
	}
}

func TestBookCreateValidation(t *testing.T) {
	book, _, _ := setupBook(t)
	_, err := book.Create(context.Background(), model.AppointmentFields{Title: "", Date: "2025-01-01"})
	if !errors.Is(err, ErrTitleRequired) {
		t.Errorf("err = %v, want ErrTitleRequired", err)
	}
}

func TestBookUpdate(t *testing.T) {
	book, _, _ := setupBook(t)
	ctx := context.Background()

	a, _ := book.Create(ctx, model.AppointmentFields{Title: "Scan", Date: "2025-06-01", Time: "09:00", Reminder: true})
	next := model.AppointmentFields{Title: "Anatomy scan", Date: "2025-06-03", Time: "10:00", Notes: "20 weeks", Reminder: false}

	updated, err := book.Update(ctx, a.ID, a.Version, next)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Fields() != next {
		t.Errorf("updated = %+v", updated.Fields())
	}
	if got := book.Appointments(); got[0].Fields() != next {
		t.Errorf("local copy not refreshed: %+v", got[0])
	}

	_, err = book.Update(ctx, a.ID, a.Version, next)
	if !errors.Is(err, store.ErrStaleVersion) {
		t.Errorf("stale update err = %v, want ErrStaleVersion", err)
	}

	_, err = book.Update(ctx, "missing", 0, next)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing update err = %v, want ErrNotFound", err)
	}
}

func TestBookDeleteIsLocal(t *testing.T) {
	_, s, owner := setupBook(t)
	ctx := context.Background()
	a, _ := s.Create(ctx, owner, model.AppointmentFields{Title: "a", Date: "2025-01-01"})
	b, _ := s.Create(ctx, owner, model.AppointmentFields{Title: "b", Date: "2025-01-02"})

	fb := &failingBackend{Backend: s}
	book := NewBook(fb, owner)
	book.Refresh(ctx)

	n, err := book.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	if fb.calls["list"] != 1 {
		t.Errorf("list calls = %d, delete must not re-fetch", fb.calls["list"])
	}
	if got := book.Appointments(); len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("local = %+v, want only %q", got, b.ID)
	}

	n, err = book.Delete(ctx, "missing")
	if err != nil || n != 0 {
		t.Errorf("missing delete = (%d, %v), want (0, nil)", n, err)
	}
	if len(book.Appointments()) != 1 {
		t.Error("missing delete should not touch other records")
	}
}

func TestBookWithoutOwnerIsNoop(t *testing.T) {
	_, s, _ := setupBook(t)
	fb := &failingBackend{Backend: s}
	book := NewBook(fb, "")
	ctx := context.Background()

	if err := book.Refresh(ctx); err != nil {
		t.Errorf("refresh: %v", err)
	}
	if n, err := book.Delete(ctx, "x"); n != 0 || err != nil {
		t.Errorf("delete = (%d, %v)", n, err)
	}
	if len(fb.calls) != 0 {
		t.Errorf("backend called without session: %v", fb.calls)
	}
	if _, err := book.Create(ctx, model.AppointmentFields{Title: "a", Date: "2025-01-01"}); !errors.Is(err, ErrNoSession) {
		t.Errorf("create err = %v, want ErrNoSession", err)
	}
}
