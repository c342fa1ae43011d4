package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dukerupert/bloom/internal/auth"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// sessionKey identifies the signed-in session for per-session view state.
func sessionKey(r *http.Request) string {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		return ""
	}
	return strconv.FormatInt(ac.SessionID, 10)
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// parseIfMatch reads a version from an If-Match header such as `"3"` or
// `W/"3"`. It returns 0 when the header is absent or unusable.
func parseIfMatch(header string) int64 {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "W/")
	header = strings.Trim(header, `"`)
	v, err := strconv.ParseInt(header, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// safeRedirect keeps redirects on this site. Browsers read `/\host` like
// "//host" and drop tabs and newlines, so both are refused.
func safeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.ContainsRune(target, '\\') {
		return fallback
	}
	for _, c := range target {
		if c < 0x20 || c == 0x7f {
			return fallback
		}
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || strings.HasPrefix(target, "//") {
		return fallback
	}
	return target
}
