package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/bloom/internal/appointment"
	"github.com/dukerupert/bloom/internal/auth"
	"github.com/dukerupert/bloom/internal/calendar"
	"github.com/dukerupert/bloom/internal/model"
	"github.com/dukerupert/bloom/internal/store"
	ws "github.com/dukerupert/bloom/internal/websocket"
)

// Mirror receives a copy of every appointment change.
type Mirror interface {
	Put(ctx context.Context, a model.Appointment) error
	Remove(ctx context.Context, id string) error
}

// Clock supplies the current time and the zone appointment dates are read in.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Clock) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().In(c.location())
}

func (c Clock) today() time.Time {
	return appointment.Midnight(c.now())
}

// changes fans appointment mutations out to open pages, the CalDAV mirror
// and the reminder history.
type changes struct {
	hub       *ws.Hub
	mirror    Mirror
	reminders *store.ReminderStore
	logger    *slog.Logger
}

func (c *changes) saved(ctx context.Context, action string, a model.Appointment) {
	if action == "updated" && c.reminders != nil {
		if err := c.reminders.ForgetAppointment(ctx, a.ID); err != nil {
			c.logger.Warn("clear reminder history", "appointment_id", a.ID, "error", err)
		}
	}
	if c.hub != nil {
		c.hub.BroadcastTo(a.OwnerID, ws.NewMessage("appointment", action, a.ID, map[string]any{"date": a.Date}))
	}
	if c.mirror != nil {
		go func() {
			if err := c.mirror.Put(ctx, a); err != nil {
				c.logger.Warn("caldav put", "appointment_id", a.ID, "error", err)
			}
		}()
	}
}

func (c *changes) deleted(ctx context.Context, ownerID, id string) {
	if c.hub != nil {
		c.hub.BroadcastTo(ownerID, ws.NewMessage("appointment", "deleted", id, nil))
	}
	if c.mirror != nil {
		go func() {
			if err := c.mirror.Remove(ctx, id); err != nil {
				c.logger.Warn("caldav remove", "appointment_id", id, "error", err)
			}
		}()
	}
}

type AppointmentHandler struct {
	appts   *store.AppointmentStore
	views   *appointment.Views
	changes *changes
	clock   Clock
	logger  *slog.Logger
}

func NewAppointmentHandler(appts *store.AppointmentStore, reminders *store.ReminderStore, views *appointment.Views, hub *ws.Hub, mirror Mirror, clock Clock, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		appts:   appts,
		views:   views,
		changes: &changes{hub: hub, mirror: mirror, reminders: reminders, logger: logger},
		clock:   clock,
		logger:  logger,
	}
}

type appointmentRequest struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
	Reminder *bool  `json:"reminder"`
	Version  int64  `json:"version"`
}

func (req appointmentRequest) fields() model.AppointmentFields {
	reminder := true
	if req.Reminder != nil {
		reminder = *req.Reminder
	}
	return model.AppointmentFields{
		Title:    req.Title,
		Date:     req.Date,
		Time:     req.Time,
		Notes:    req.Notes,
		Reminder: reminder,
	}
}

type appointmentList struct {
	Upcoming []model.Appointment `json:"upcoming"`
	Past     []model.Appointment `json:"past"`
}

func (h *AppointmentHandler) partition(appts []model.Appointment) appointmentList {
	upcoming, past := appointment.Partition(appts, h.clock.today())
	return appointmentList{Upcoming: upcoming, Past: past}
}

func isValidationError(err error) bool {
	return errors.Is(err, appointment.ErrTitleRequired) ||
		errors.Is(err, appointment.ErrInvalidDate) ||
		errors.Is(err, appointment.ErrInvalidTime)
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	book := appointment.NewBook(h.appts, auth.UserID(ctx))
	if err := book.Refresh(ctx); err != nil {
		h.logger.Error("list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.partition(book.Appointments()))
}

// ByDate returns the month's appointments keyed by YYYY-MM-DD.
func (h *AppointmentHandler) ByDate(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	first := appointment.ParseMonth(r.URL.Query().Get("month"), h.clock.now())
	last := first.AddDate(0, 1, -1)

	appts, err := h.appts.ListByOwnerBetween(ctx, auth.UserID(ctx), appointment.DateKey(first), appointment.DateKey(last))
	if err != nil {
		h.logger.Error("list appointments by date", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, appointment.GroupByDate(appts))
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	book := appointment.NewBook(h.appts, auth.UserID(ctx))
	a, err := book.Create(ctx, req.fields())
	if isValidationError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if a == nil {
		h.logger.Error("create appointment", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn("refresh after create", "error", err)
	}

	h.changes.saved(ctx, "created", *a)
	w.Header().Set("ETag", etag(a.Version))
	writeJSON(w, http.StatusCreated, h.savedBody(a, book, err))
}

// savedBody reports a written appointment with the reloaded list. When the
// reload failed the list is left out and refresh_error tells the client to
// fetch it again.
func (h *AppointmentHandler) savedBody(a *model.Appointment, book *appointment.Book, refreshErr error) map[string]any {
	body := map[string]any{"appointment": a}
	if refreshErr != nil {
		body["refresh_error"] = "Saved, but the appointment list could not be reloaded."
		return body
	}
	body["appointments"] = h.partition(book.Appointments())
	return body
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	a, err := h.appts.GetByID(ctx, auth.UserID(ctx), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get appointment")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	w.Header().Set("ETag", etag(a.Version))
	writeJSON(w, http.StatusOK, a)
}

// Update overwrites an appointment. The expected version comes from If-Match
// when present, otherwise from the body.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	expected := req.Version
	if v := parseIfMatch(r.Header.Get("If-Match")); v > 0 {
		expected = v
	}

	ctx := context.WithoutCancel(r.Context())
	ownerID := auth.UserID(ctx)
	id := r.PathValue("id")
	book := appointment.NewBook(h.appts, ownerID)
	a, err := book.Update(ctx, id, expected, req.fields())
	switch {
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	case errors.Is(err, store.ErrStaleVersion):
		current, getErr := h.appts.GetByID(ctx, ownerID, id)
		if getErr != nil {
			h.logger.Error("get current appointment", "id", id, "error", getErr)
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   err.Error(),
			"current": current,
		})
		return
	case a == nil:
		h.logger.Error("update appointment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case err != nil:
		h.logger.Warn("refresh after update", "error", err)
	}

	h.changes.saved(ctx, "updated", *a)
	w.Header().Set("ETag", etag(a.Version))
	writeJSON(w, http.StatusOK, h.savedBody(a, book, err))
}

// Delete removes an appointment. Deleting a missing id still answers 204.
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	ownerID := auth.UserID(ctx)
	id := r.PathValue("id")

	n, err := appointment.NewBook(h.appts, ownerID).Delete(ctx, id)
	if err != nil {
		h.logger.Error("delete appointment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
		if v.PendingDeleteID == id {
			v.CancelDelete()
		}
		return nil
	})
	if n > 0 {
		h.changes.deleted(ctx, ownerID, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestDelete marks id as awaiting confirmation for this session.
func (h *AppointmentHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
		return v.RequestDelete(id)
	})
	if errors.Is(err, appointment.ErrDeletePending) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":             err.Error(),
			"pending_delete_id": v.PendingDeleteID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pending_delete_id": v.PendingDeleteID})
}

func (h *AppointmentHandler) CancelDelete(w http.ResponseWriter, r *http.Request) {
	h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
		v.CancelDelete()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]string{"pending_delete_id": ""})
}

// Feed serves the owner's appointments as an iCalendar file.
func (h *AppointmentHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	appts, err := h.appts.ListByOwner(ctx, auth.UserID(ctx))
	if err != nil {
		h.logger.Error("list appointments for feed", "error", err)
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.ics"`)
	cal := calendar.Feed(appts, h.clock.location(), h.clock.now())
	if err := calendar.Encode(w, cal); err != nil {
		h.logger.Error("encode feed", "error", err)
	}
}
