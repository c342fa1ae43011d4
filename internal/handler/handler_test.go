package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/bloom/internal/appointment"
	"github.com/dukerupert/bloom/internal/auth"
	"github.com/dukerupert/bloom/internal/database"
	"github.com/dukerupert/bloom/internal/model"
	"github.com/dukerupert/bloom/internal/store"
	"github.com/dukerupert/bloom/web"
)

var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	db       *sql.DB
	appts    *store.AppointmentStore
	profiles *store.ProfileStore
	users    *store.UserStore
	views    *appointment.Views
	apptH    *AppointmentHandler
	renderer *Renderer
	auth     auth.AuthContext
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	user, err := users.Create("maya@example.com", "Maya", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := store.NewSessionStore(db).Create(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	renderer, err := NewRenderer(web.FS, discardLogger())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	appts := store.NewAppointmentStore(db)
	views := appointment.NewViews(func() time.Time { return fixedNow })
	clock := Clock{Now: func() time.Time { return fixedNow }, Location: time.UTC}
	return &testEnv{
		db:       db,
		appts:    appts,
		profiles: store.NewProfileStore(db),
		users:    users,
		views:    views,
		apptH:    NewAppointmentHandler(appts, store.NewReminderStore(db), views, nil, nil, clock, discardLogger()),
		renderer: renderer,
		auth:     auth.AuthContext{UserID: user.ID, Email: user.Email, Name: user.Name, SessionID: sess.ID},
	}
}

// request builds a signed-in request. body may be nil, a string (form
// encoded) or any value (JSON encoded).
func (e *testEnv) request(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, target, nil)
	case string:
		r = httptest.NewRequest(method, target, bytes.NewBufferString(b))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = httptest.NewRequest(method, target, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	}
	return r.WithContext(auth.WithAuth(r.Context(), e.auth))
}

func (e *testEnv) seed(t *testing.T, title, date string) *model.Appointment {
	t.Helper()
	a, err := e.appts.Create(context.Background(), e.auth.UserID, model.AppointmentFields{
		Title: title, Date: date, Time: "09:00", Reminder: true,
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return a
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}
