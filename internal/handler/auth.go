package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/bloom/internal/appointment"
	"github.com/dukerupert/bloom/internal/auth"
	"github.com/dukerupert/bloom/internal/middleware"
	"github.com/dukerupert/bloom/internal/model"
	"github.com/dukerupert/bloom/internal/store"
)

const minPasswordLength = 8

type AuthHandler struct {
	userStore     *store.UserStore
	sessionStore  *store.SessionStore
	profileStore  *store.ProfileStore
	views         *appointment.Views
	renderer      *Renderer
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, ps *store.ProfileStore, views *appointment.Views, renderer *Renderer, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:     us,
		sessionStore:  ss,
		profileStore:  ps,
		views:         views,
		renderer:      renderer,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "login", map[string]any{"Title": "Sign in"})
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "register", map[string]any{"Title": "Create account"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	fail := func() {
		h.renderer.Render(w, http.StatusUnauthorized, "login", map[string]any{
			"Title": "Sign in",
			"Email": emailAddr,
			"Error": "Invalid email or password.",
		})
	}

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		fail()
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		fail()
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	http.Redirect(w, r, "/appointments", http.StatusSeeOther)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	name := strings.TrimSpace(r.FormValue("name"))
	password := r.FormValue("password")

	fail := func(status int, msg string) {
		h.renderer.Render(w, status, "register", map[string]any{
			"Title": "Create account",
			"Email": emailAddr,
			"Name":  name,
			"Error": msg,
		})
	}

	switch {
	case !strings.Contains(emailAddr, "@"):
		fail(http.StatusBadRequest, "Please enter a valid email address.")
		return
	case name == "":
		fail(http.StatusBadRequest, "Please enter your name.")
		return
	case len(password) < minPasswordLength:
		fail(http.StatusBadRequest, "Password must be at least 8 characters.")
		return
	}

	existing, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		fail(http.StatusConflict, "An account with that email already exists.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	user, err := h.userStore.Create(emailAddr, name, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if _, err := h.profileStore.Upsert(r.Context(), model.Profile{UserID: user.ID, Name: name}); err != nil {
		h.logger.Warn("create profile", "user_id", user.ID, "error", err)
	}

	if !h.startSession(w, r, user) {
		return
	}
	http.Redirect(w, r, "/welcome", http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) bool {
	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(store.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies || r.TLS != nil,
	})
	return true
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
		h.views.Drop(sessionKey(r))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies || r.TLS != nil,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
