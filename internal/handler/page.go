package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/bloom/internal/appointment"
	"github.com/dukerupert/bloom/internal/assistant"
	"github.com/dukerupert/bloom/internal/auth"
	"github.com/dukerupert/bloom/internal/model"
	"github.com/dukerupert/bloom/internal/store"
)

// Integrations reports which external services are configured.
type Integrations struct {
	Mapbox   bool
	Gemini   bool
	Postmark bool
	CalDAV   bool
}

type PageDeps struct {
	DB           *sql.DB
	Appointments *AppointmentHandler
	Profiles     *store.ProfileStore
	Users        *store.UserStore
	Assistant    *assistant.Assistant
	Renderer     *Renderer
	Integrations Integrations
	MapboxToken  string
	Logger       *slog.Logger
}

// PageHandler serves the server-rendered screens and their form posts.
type PageHandler struct {
	db           *sql.DB
	appts        *store.AppointmentStore
	views        *appointment.Views
	changes      *changes
	clock        Clock
	profiles     *store.ProfileStore
	users        *store.UserStore
	assistant    *assistant.Assistant
	renderer     *Renderer
	integrations Integrations
	mapboxToken  string
	logger       *slog.Logger
}

func NewPageHandler(d PageDeps) *PageHandler {
	return &PageHandler{
		db:           d.DB,
		appts:        d.Appointments.appts,
		views:        d.Appointments.views,
		changes:      d.Appointments.changes,
		clock:        d.Appointments.clock,
		profiles:     d.Profiles,
		users:        d.Users,
		assistant:    d.Assistant,
		renderer:     d.Renderer,
		integrations: d.Integrations,
		mapboxToken:  d.MapboxToken,
		logger:       d.Logger,
	}
}

type welcomeFeature struct {
	Title       string
	Description string
	Link        string
}

var welcomeFeatures = []welcomeFeature{
	{"Weekly Pregnancy Tracker", "Follow your baby's growth and your body's changes week by week.", "/profile"},
	{"AI Pregnancy Assistant", "Ask questions any time and get answers tailored to your pregnancy.", "/chat"},
	{"Symptom Journal", "Keep track of how you feel so you can share it at your next visit.", "/profile"},
	{"Appointment Management", "Schedule checkups and get reminders so nothing is missed.", "/appointments"},
}

func (h *PageHandler) page(r *http.Request, title string) map[string]any {
	ac, _ := auth.FromContext(r.Context())
	return map[string]any{
		"Title": title,
		"User":  ac,
	}
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/appointments", http.StatusSeeOther)
}

func (h *PageHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Welcome to Bloom")
	data["Features"] = welcomeFeatures
	h.renderer.Render(w, http.StatusOK, "welcome", data)
}

// takeView returns the session's view and clears its status message so it
// is shown once.
func (h *PageHandler) takeView(r *http.Request) appointment.View {
	var shown appointment.View
	h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
		shown = *v
		v.ClearMessage()
		return nil
	})
	return shown
}

func (h *PageHandler) loadBook(ctx context.Context) (*appointment.Book, error) {
	book := appointment.NewBook(h.appts, auth.UserID(ctx))
	return book, book.Refresh(ctx)
}

func (h *PageHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	data := h.page(r, "Appointments")

	book, err := h.loadBook(ctx)
	if err != nil {
		h.logger.Error("load appointments", "error", err)
		data["LoadError"] = err.Error()
	}
	upcoming, past := appointment.Partition(book.Appointments(), h.clock.today())

	data["View"] = h.takeView(r)
	data["Upcoming"] = upcoming
	data["Past"] = past
	data["Return"] = "/appointments"
	h.renderer.Render(w, http.StatusOK, "appointments", data)
}

func (h *PageHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	now := h.clock.now()
	q := r.URL.Query()

	if date := q.Get("date"); date != "" {
		if d, err := appointment.ParseDate(date, now.Location()); err == nil {
			h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
				v.SelectedDate = appointment.DateKey(d)
				return nil
			})
		}
	}

	data := h.page(r, "Calendar")
	book, err := h.loadBook(ctx)
	if err != nil {
		h.logger.Error("load appointments", "error", err)
		data["LoadError"] = err.Error()
	}

	view := h.takeView(r)
	monthValue := q.Get("month")
	if monthValue == "" && len(view.SelectedDate) >= 7 {
		monthValue = view.SelectedDate[:7]
	}
	first := appointment.ParseMonth(monthValue, now)
	groups := appointment.GroupByDate(book.Appointments())

	data["View"] = view
	data["Month"] = appointment.MonthGrid(first, now, view.SelectedDate, groups)
	data["MonthLabel"] = first.Format("January 2006")
	data["Selected"] = groups[view.SelectedDate]
	data["Return"] = "/calendar?month=" + first.Format("2006-01")
	h.renderer.Render(w, http.StatusOK, "calendar", data)
}

func returnTo(r *http.Request) string {
	return safeRedirect(r.FormValue("return"), "/appointments")
}

func (h *PageHandler) AppointmentNew(w http.ResponseWriter, r *http.Request) {
	h.views.Update(sessionKey(r), func(v *appointment.View, now time.Time) error {
		if d, err := appointment.ParseDate(r.FormValue("date"), h.clock.location()); err == nil {
			v.SelectedDate = appointment.DateKey(d)
		}
		v.OpenNew(now.In(h.clock.location()))
		return nil
	})
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

func (h *PageHandler) AppointmentEdit(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	a, err := h.appts.GetByID(ctx, auth.UserID(ctx), r.PathValue("id"))
	if err != nil || a == nil {
		h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
			v.Fail("Appointment not found.")
			return nil
		})
		http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
		return
	}
	h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
		v.OpenEdit(*a)
		return nil
	})
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

func (h *PageHandler) AppointmentCancel(w http.ResponseWriter, r *http.Request) {
	h.views.Update(sessionKey(r), func(v *appointment.View, now time.Time) error {
		v.Close(now.In(h.clock.location()))
		return nil
	})
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

func formFromRequest(r *http.Request) appointment.Form {
	version, _ := strconv.ParseInt(r.FormValue("editing_version"), 10, 64)
	reminder := r.FormValue("reminder")
	return appointment.Form{
		Title:          r.FormValue("title"),
		Date:           r.FormValue("date"),
		Time:           r.FormValue("time"),
		Notes:          r.FormValue("notes"),
		Reminder:       reminder == "on" || reminder == "true",
		EditingID:      r.FormValue("editing_id"),
		EditingVersion: version,
	}
}

func saveErrorMessage(err error) string {
	switch {
	case isValidationError(err):
		return "Please fix the form: " + err.Error() + "."
	case errors.Is(err, store.ErrStaleVersion):
		return "This appointment was changed somewhere else. Reopen it to see the latest version."
	case errors.Is(err, appointment.ErrNotFound):
		return "Appointment not found."
	case errors.Is(err, appointment.ErrNoSession):
		return ""
	default:
		return "Error saving appointment: " + err.Error()
	}
}

// AppointmentSave creates or updates from the dialog form. A failure keeps
// the submitted form open with the error message.
func (h *PageHandler) AppointmentSave(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	form := formFromRequest(r)
	book := appointment.NewBook(h.appts, auth.UserID(ctx))

	var a *model.Appointment
	var err error
	action := "created"
	if form.Editing() {
		action = "updated"
		a, err = book.Update(ctx, form.EditingID, form.EditingVersion, form.Fields())
	} else {
		a, err = book.Create(ctx, form.Fields())
	}

	key := sessionKey(r)
	if a == nil {
		msg := saveErrorMessage(err)
		h.logger.Warn("save appointment", "action", action, "error", err)
		h.views.Update(key, func(v *appointment.View, _ time.Time) error {
			v.Form = form
			v.DialogOpen = true
			if msg != "" {
				v.Fail(msg)
			}
			return nil
		})
		http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
		return
	}

	h.changes.saved(ctx, action, *a)
	msg := "Appointment added."
	if action == "updated" {
		msg = "Appointment updated."
	}
	h.views.Update(key, func(v *appointment.View, now time.Time) error {
		v.Succeed(msg, now.In(h.clock.location()))
		v.SelectedDate = a.Date
		return nil
	})
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

func (h *PageHandler) AppointmentDeleteRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
		if err := v.RequestDelete(id); err != nil {
			v.Fail("Finish or cancel the delete you already started.")
		}
		return nil
	})
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

func (h *PageHandler) AppointmentDeleteCancel(w http.ResponseWriter, r *http.Request) {
	h.views.Update(sessionKey(r), func(v *appointment.View, _ time.Time) error {
		v.CancelDelete()
		return nil
	})
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

// AppointmentDelete confirms the pending delete. Posting any id other than
// the pending one does nothing.
func (h *PageHandler) AppointmentDelete(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	id := r.PathValue("id")
	key := sessionKey(r)

	if h.views.Get(key).PendingDeleteID != id {
		http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
		return
	}

	ownerID := auth.UserID(ctx)
	n, err := appointment.NewBook(h.appts, ownerID).Delete(ctx, id)
	h.views.Update(key, func(v *appointment.View, now time.Time) error {
		v.CancelDelete()
		if err != nil {
			v.Fail("Error deleting appointment: " + err.Error())
			return nil
		}
		v.Succeed("Appointment deleted.", now.In(h.clock.location()))
		return nil
	})
	if err != nil {
		h.logger.Error("delete appointment", "id", id, "error", err)
	} else if n > 0 {
		h.changes.deleted(ctx, ownerID, id)
	}
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

func (h *PageHandler) Clinics(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Find a clinic")
	data["MapboxToken"] = h.mapboxToken
	data["Configured"] = h.integrations.Mapbox
	h.renderer.Render(w, http.StatusOK, "clinics", data)
}

func (h *PageHandler) Chat(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Pregnancy assistant")
	profile, err := loadProfile(r.Context(), h.profiles)
	if err != nil {
		h.logger.Warn("load profile for chat", "error", err)
	}
	data["Greeting"] = assistant.Greeting(profile)
	data["Online"] = h.assistant.Online()
	h.renderer.Render(w, http.StatusOK, "chat", data)
}

func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "Your profile")
	profile, err := loadProfile(r.Context(), h.profiles)
	if err != nil {
		h.logger.Error("load profile", "error", err)
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	data["Profile"] = profile
	if week, ok := assistant.WeekFromDueDate(profile.DueDate, h.clock.now()); ok {
		data["Week"] = week
	}
	data["Saved"] = r.URL.Query().Get("saved") == "1"
	h.renderer.Render(w, http.StatusOK, "profile", data)
}

func (h *PageHandler) ProfileSave(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	p := model.Profile{
		UserID:    auth.UserID(ctx),
		Name:      strings.TrimSpace(r.FormValue("name")),
		DueDate:   r.FormValue("due_date"),
		Symptoms:  splitList(r.FormValue("symptoms")),
		Allergies: splitList(r.FormValue("allergies")),
	}
	if !validDueDate(p.DueDate) {
		data := h.page(r, "Your profile")
		data["Profile"] = &p
		data["Error"] = "Due date must be YYYY-MM-DD."
		h.renderer.Render(w, http.StatusBadRequest, "profile", data)
		return
	}
	if _, err := saveProfile(ctx, h.profiles, h.users, p); err != nil {
		h.logger.Error("save profile", "error", err)
		data := h.page(r, "Your profile")
		data["Profile"] = &p
		data["Error"] = "Error saving profile: " + err.Error()
		h.renderer.Render(w, http.StatusInternalServerError, "profile", data)
		return
	}
	http.Redirect(w, r, "/profile?saved=1", http.StatusSeeOther)
}

type debugCheck struct {
	Name   string
	OK     bool
	Detail string
}

// Debug shows which integrations are configured and whether the database
// answers.
func (h *PageHandler) Debug(w http.ResponseWriter, r *http.Request) {
	dbCheck := debugCheck{Name: "Database", OK: true, Detail: "connected"}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		dbCheck.OK = false
		dbCheck.Detail = err.Error()
	}

	checks := []debugCheck{
		dbCheck,
		{Name: "Mapbox token", OK: h.integrations.Mapbox},
		{Name: "Gemini API key", OK: h.integrations.Gemini},
		{Name: "Postmark email", OK: h.integrations.Postmark},
		{Name: "CalDAV mirror", OK: h.integrations.CalDAV},
	}

	data := h.page(r, "Debug")
	data["Checks"] = checks
	data["Now"] = h.clock.now().Format(time.RFC3339)
	data["Feed"] = "/appointments.ics"
	h.renderer.Render(w, http.StatusOK, "debug", data)
}
