// Package config loads Bloom's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	BaseURL   string
	Timezone  *time.Location

	SecureCookies bool

	MapboxToken string

	GeminiAPIKey string
	GeminiModel  string
	ChatRPS      float64

	PostmarkToken string
	PostmarkFrom  string

	ReminderSpec string

	CalDAV CalDAVConfig
}

type CalDAVConfig struct {
	URL      string
	Username string
	Password string
	Calendar string
}

// Configured reports whether enough is set to mirror appointments.
func (c CalDAVConfig) Configured() bool {
	return c.URL != "" && c.Username != "" && c.Password != "" && c.Calendar != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	port := get("BLOOM_PORT", "8080")

	tz := time.Local
	if name := get("BLOOM_TIMEZONE", ""); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("invalid BLOOM_TIMEZONE: %w", err)
		}
		tz = loc
	}

	chatRPS, err := strconv.ParseFloat(get("BLOOM_CHAT_RPS", "1"), 64)
	if err != nil || chatRPS <= 0 {
		return nil, fmt.Errorf("BLOOM_CHAT_RPS must be a positive number")
	}

	var secure bool
	if v := get("BLOOM_SECURE_COOKIES", ""); v != "" {
		secure, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("BLOOM_SECURE_COOKIES must be true or false")
		}
	}

	return &Config{
		Port:          port,
		DBPath:        get("BLOOM_DB_PATH", "bloom.db"),
		LogLevel:      get("BLOOM_LOG_LEVEL", "info"),
		LogFormat:     get("BLOOM_LOG_FORMAT", "text"),
		BaseURL:       strings.TrimRight(get("BLOOM_BASE_URL", "http://localhost:"+port), "/"),
		Timezone:      tz,
		SecureCookies: secure,
		MapboxToken:   get("MAPBOX_TOKEN", ""),
		GeminiAPIKey:  get("GEMINI_API_KEY", ""),
		GeminiModel:   get("GEMINI_MODEL", "gemini-2.0-flash"),
		ChatRPS:       chatRPS,
		PostmarkToken: get("POSTMARK_SERVER_TOKEN", ""),
		PostmarkFrom:  get("POSTMARK_FROM", "reminders@bloom.local"),
		ReminderSpec:  get("BLOOM_REMINDER_SPEC", "0 8 * * *"),
		CalDAV: CalDAVConfig{
			URL:      get("CALDAV_URL", ""),
			Username: get("CALDAV_USERNAME", ""),
			Password: get("CALDAV_PASSWORD", ""),
			Calendar: get("CALDAV_CALENDAR", ""),
		},
	}, nil
}
