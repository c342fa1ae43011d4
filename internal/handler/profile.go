package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/bloom/internal/auth"
	"github.com/dukerupert/bloom/internal/model"
	"github.com/dukerupert/bloom/internal/store"
)

type ProfileHandler struct {
	profileStore *store.ProfileStore
	userStore    *store.UserStore
	logger       *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, us *store.UserStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, userStore: us, logger: logger}
}

type profileRequest struct {
	Name      string   `json:"name"`
	DueDate   string   `json:"due_date"`
	Symptoms  []string `json:"symptoms"`
	Allergies []string `json:"allergies"`
}

// saveProfile upserts p and copies a non-empty profile name onto the
// account so the navigation and reminder emails use it.
func saveProfile(ctx context.Context, ps *store.ProfileStore, us *store.UserStore, p model.Profile) (*model.Profile, error) {
	saved, err := ps.Upsert(ctx, p)
	if err != nil {
		return nil, err
	}
	if saved != nil && saved.Name != "" {
		if _, err := us.UpdateName(saved.UserID, saved.Name); err != nil {
			return nil, fmt.Errorf("sync account name: %w", err)
		}
	}
	return saved, nil
}

// loadProfile returns the stored profile or an empty one named after the
// signed-in user.
func loadProfile(ctx context.Context, ps *store.ProfileStore) (*model.Profile, error) {
	ac, _ := auth.FromContext(ctx)
	p, err := ps.Get(ctx, ac.UserID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &model.Profile{UserID: ac.UserID, Name: ac.Name, Symptoms: []string{}, Allergies: []string{}}
	}
	return p, nil
}

func cleanList(items []string) []string {
	out := []string{}
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// splitList parses a comma-separated form value.
func splitList(value string) []string {
	return cleanList(strings.Split(value, ","))
}

func validDueDate(value string) bool {
	if value == "" {
		return true
	}
	_, err := time.Parse(model.DateLayout, value)
	return err == nil
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := loadProfile(r.Context(), h.profileStore)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DueDate = strings.TrimSpace(req.DueDate)
	if !validDueDate(req.DueDate) {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	p, err := saveProfile(ctx, h.profileStore, h.userStore, model.Profile{
		UserID:    auth.UserID(ctx),
		Name:      strings.TrimSpace(req.Name),
		DueDate:   req.DueDate,
		Symptoms:  cleanList(req.Symptoms),
		Allergies: cleanList(req.Allergies),
	})
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}
