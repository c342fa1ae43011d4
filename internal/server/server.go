package server

import (
	"database/sql"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/bloom/internal/appointment"
	"github.com/dukerupert/bloom/internal/assistant"
	"github.com/dukerupert/bloom/internal/config"
	"github.com/dukerupert/bloom/internal/email"
	"github.com/dukerupert/bloom/internal/handler"
	"github.com/dukerupert/bloom/internal/middleware"
	"github.com/dukerupert/bloom/internal/reminder"
	"github.com/dukerupert/bloom/internal/store"
	ws "github.com/dukerupert/bloom/internal/websocket"
	"github.com/dukerupert/bloom/web"
)

// Services are the external clients the server talks to. Mirror may be nil.
type Services struct {
	Places    handler.PlaceSearcher
	Assistant *assistant.Assistant
	Email     *email.Client
	Mirror    handler.Mirror
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	appointmentH  *handler.AppointmentHandler
	authH         *handler.AuthHandler
	profileH      *handler.ProfileHandler
	placesH       *handler.PlacesHandler
	chatH         *handler.ChatHandler
	pageH         *handler.PageHandler
	sessionStore  *store.SessionStore
	userStore     *store.UserStore
	rateLimiter   *middleware.RateLimiter
	views         *appointment.Views
	reminderSched *reminder.Scheduler
	static        fs.FS
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, svc Services, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	profileStore := store.NewProfileStore(db)
	appointmentStore := store.NewAppointmentStore(db)
	reminderStore := store.NewReminderStore(db)

	renderer, err := handler.NewRenderer(web.FS, logger.With("component", "template"))
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return nil, err
	}

	clock := handler.Clock{Now: time.Now, Location: cfg.Timezone}
	views := appointment.NewViews(func() time.Time { return time.Now().In(cfg.Timezone) })

	var mailer reminder.Mailer
	if svc.Email != nil {
		mailer = svc.Email
	}

	appointmentH := handler.NewAppointmentHandler(appointmentStore, reminderStore, views, hub, svc.Mirror, clock, logger.With("component", "appointment"))

	return &Server{
		db:           db,
		hub:          hub,
		appointmentH: appointmentH,
		authH:        handler.NewAuthHandler(userStore, sessionStore, profileStore, views, renderer, cfg.SecureCookies, logger.With("component", "auth")),
		profileH:     handler.NewProfileHandler(profileStore, userStore, logger.With("component", "profile")),
		placesH:      handler.NewPlacesHandler(svc.Places, logger.With("component", "places")),
		chatH:        handler.NewChatHandler(svc.Assistant, profileStore, logger.With("component", "chat")),
		pageH: handler.NewPageHandler(handler.PageDeps{
			DB:           db,
			Appointments: appointmentH,
			Profiles:     profileStore,
			Users:        userStore,
			Assistant:    svc.Assistant,
			Renderer:     renderer,
			Integrations: handler.Integrations{
				Mapbox:   svc.Places != nil && svc.Places.Configured(),
				Gemini:   svc.Assistant != nil && svc.Assistant.Online(),
				Postmark: svc.Email != nil && svc.Email.Configured(),
				CalDAV:   svc.Mirror != nil,
			},
			MapboxToken: cfg.MapboxToken,
			Logger:      logger.With("component", "page"),
		}),
		sessionStore:  sessionStore,
		userStore:     userStore,
		rateLimiter:   middleware.NewRateLimiter(10, time.Minute),
		views:         views,
		reminderSched: reminder.NewScheduler(cfg.ReminderSpec, cfg.Timezone, appointmentStore, reminderStore, userStore, mailer, hub, logger.With("component", "reminder")),
		static:        static,
		logger:        logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Views returns the per-session page state for cleanup tasks.
func (s *Server) Views() *appointment.Views {
	return s.views
}

// ReminderScheduler returns the daily reminder job.
func (s *Server) ReminderScheduler() *reminder.Scheduler {
	return s.reminderSched
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /register", s.authH.RegisterPage)
	outerMux.HandleFunc("POST /register", s.rateLimitedHandler(s.authH.Register))
	outerMux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.static))))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	limited := rl(h)
	return limited.ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// Appointment API
	mux.HandleFunc("GET /api/appointments", s.appointmentH.List)
	mux.HandleFunc("GET /api/appointments/by-date", s.appointmentH.ByDate)
	mux.HandleFunc("POST /api/appointments", s.appointmentH.Create)
	mux.HandleFunc("GET /api/appointments/{id}", s.appointmentH.Get)
	mux.HandleFunc("PUT /api/appointments/{id}", s.appointmentH.Update)
	mux.HandleFunc("DELETE /api/appointments/{id}", s.appointmentH.Delete)
	mux.HandleFunc("POST /api/appointments/{id}/delete-request", s.appointmentH.RequestDelete)
	mux.HandleFunc("POST /api/appointments/delete-cancel", s.appointmentH.CancelDelete)
	mux.HandleFunc("GET /appointments.ics", s.appointmentH.Feed)

	// Profile, places and chat API
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PUT /api/profile", s.profileH.Update)
	mux.HandleFunc("GET /api/places", s.placesH.Search)
	mux.HandleFunc("POST /api/chat", s.chatH.Send)

	// Pages
	mux.HandleFunc("GET /{$}", s.pageH.Home)
	mux.HandleFunc("GET /welcome", s.pageH.Welcome)
	mux.HandleFunc("GET /appointments", s.pageH.Appointments)
	mux.HandleFunc("GET /appointments/new", s.pageH.AppointmentNew)
	mux.HandleFunc("GET /appointments/{id}/edit", s.pageH.AppointmentEdit)
	mux.HandleFunc("POST /appointments/save", s.pageH.AppointmentSave)
	mux.HandleFunc("POST /appointments/cancel", s.pageH.AppointmentCancel)
	mux.HandleFunc("POST /appointments/{id}/delete-request", s.pageH.AppointmentDeleteRequest)
	mux.HandleFunc("POST /appointments/delete-cancel", s.pageH.AppointmentDeleteCancel)
	mux.HandleFunc("POST /appointments/{id}/delete", s.pageH.AppointmentDelete)
	mux.HandleFunc("GET /calendar", s.pageH.Calendar)
	mux.HandleFunc("GET /clinics", s.pageH.Clinics)
	mux.HandleFunc("GET /chat", s.pageH.Chat)
	mux.HandleFunc("GET /profile", s.pageH.Profile)
	mux.HandleFunc("POST /profile", s.pageH.ProfileSave)
	mux.HandleFunc("GET /debug", s.pageH.Debug)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
