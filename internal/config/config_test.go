package config

import (
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "bloom.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "bloom.db")
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.ReminderSpec != "0 8 * * *" {
		t.Errorf("ReminderSpec = %q", cfg.ReminderSpec)
	}
	if cfg.ChatRPS != 1 {
		t.Errorf("ChatRPS = %v, want 1", cfg.ChatRPS)
	}
	if cfg.CalDAV.Configured() {
		t.Error("CalDAV should not be configured by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"BLOOM_PORT":           "9000",
		"BLOOM_BASE_URL":       "https://bloom.example.com/",
		"BLOOM_TIMEZONE":       "America/New_York",
		"BLOOM_SECURE_COOKIES": "true",
		"MAPBOX_TOKEN":         "pk.test",
		"CALDAV_URL":           "https://dav.example.com",
		"CALDAV_USERNAME":      "u",
		"CALDAV_PASSWORD":      "p",
		"CALDAV_CALENDAR":      "/cal/",
	}))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.BaseURL != "https://bloom.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timezone.String() != "America/New_York" {
		t.Errorf("Timezone = %v", cfg.Timezone)
	}
	if !cfg.SecureCookies {
		t.Error("SecureCookies should be true")
	}
	if cfg.MapboxToken != "pk.test" {
		t.Errorf("MapboxToken = %q", cfg.MapboxToken)
	}
	if !cfg.CalDAV.Configured() {
		t.Error("CalDAV should be configured")
	}
}

func TestFromEnvInvalid(t *testing.T) {
	cases := []map[string]string{
		{"BLOOM_TIMEZONE": "Mars/Olympus"},
		{"BLOOM_CHAT_RPS": "fast"},
		{"BLOOM_CHAT_RPS": "0"},
		{"BLOOM_SECURE_COOKIES": "maybe"},
	}
	for _, env := range cases {
		if _, err := FromEnv(envMap(env)); err == nil {
			t.Errorf("FromEnv(%v) should fail", env)
		}
	}
}
