package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"github.com/dukerupert/bloom/internal/model"
)

// MirrorConfig locates the CalDAV collection that receives appointments.
type MirrorConfig struct {
	URL      string
	Username string
	Password string
	Calendar string
}

// Mirror writes each appointment to a CalDAV calendar as <calendar>/<id>.ics.
type Mirror struct {
	client   *caldav.Client
	calendar string
	location *time.Location
	now      func() time.Time
}

// NewMirror connects a CalDAV client. httpClient may be nil.
func NewMirror(cfg MirrorConfig, loc *time.Location, httpClient *http.Client) (*Mirror, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Username != "" {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = &basicAuthTransport{username: cfg.Username, password: cfg.Password, base: base}
		httpClient = &wrapped
	}

	client, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	calendar := cfg.Calendar
	if !strings.HasSuffix(calendar, "/") {
		calendar += "/"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Mirror{client: client, calendar: calendar, location: loc, now: time.Now}, nil
}

func (m *Mirror) objectPath(id string) string {
	return m.calendar + id + ".ics"
}

// Put creates or replaces the appointment's calendar object.
func (m *Mirror) Put(ctx context.Context, a model.Appointment) error {
	cal, err := Single(a, m.location, m.now())
	if err != nil {
		return err
	}
	if _, err := m.client.PutCalendarObject(ctx, m.objectPath(a.ID), cal); err != nil {
		return fmt.Errorf("put calendar object: %w", err)
	}
	return nil
}

// Remove deletes the appointment's calendar object.
func (m *Mirror) Remove(ctx context.Context, id string) error {
	if err := m.client.RemoveAll(ctx, m.objectPath(id)); err != nil {
		return fmt.Errorf("remove calendar object: %w", err)
	}
	return nil
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}
