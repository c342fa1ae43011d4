package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/bloom/internal/places"
)

// PlaceSearcher finds clinics near a location.
type PlaceSearcher interface {
	Configured() bool
	Search(ctx context.Context, query string, lat, lon float64) ([]places.Place, error)
}

const placesFallback = "Unable to load nearby clinics right now."

type PlacesHandler struct {
	searcher PlaceSearcher
	logger   *slog.Logger
}

func NewPlacesHandler(searcher PlaceSearcher, logger *slog.Logger) *PlacesHandler {
	return &PlacesHandler{searcher: searcher, logger: logger}
}

func parseCoord(value string) float64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return v
}

// Search answers 200 even when the upstream fails, with an empty list and a
// message the page can show.
func (h *PlacesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat := parseCoord(q.Get("lat"))
	lon := parseCoord(q.Get("lon"))
	if lat == 0 && lon == 0 {
		lat, lon = places.DefaultLatitude, places.DefaultLongitude
	}

	results, err := h.searcher.Search(r.Context(), q.Get("q"), lat, lon)
	if err != nil {
		h.logger.Warn("places search", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"places": []places.Place{},
			"error":  placesFallback,
		})
		return
	}
	if results == nil {
		results = []places.Place{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"places": results,
		"center": map[string]float64{"latitude": lat, "longitude": lon},
	})
}
