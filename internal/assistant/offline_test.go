package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/bloom/internal/model"
)

func TestRespond(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	profile := &model.Profile{
		Name:      "Maya",
		DueDate:   "2025-07-05",
		Symptoms:  []string{"nausea", "fatigue"},
		Allergies: []string{"peanuts"},
	}
	empty := &model.Profile{Name: "Maya"}

	cases := []struct {
		name    string
		profile *model.Profile
		msg     string
		prefix  string
	}{
		{"week", profile, "How is my progress?", "You're currently in week 23 of your pregnancy."},
		{"symptoms listed", profile, "Symptoms?", "I see you've mentioned experiencing nausea, fatigue."},
		{"no symptoms", empty, "I'm feeling odd", "How are you feeling today?"},
		{"allergies listed", profile, "my allergies", "I see you've noted allergies to peanuts."},
		{"no allergies", empty, "allergic?", "I don't see any allergies listed"},
		{"diet", profile, "What should I eat?", "A balanced diet is crucial"},
		{"exercise", profile, "Can I workout?", "Regular exercise during pregnancy"},
		{"greeting", nil, "Hi there", "Hello! How can I assist you"},
		{"no false greeting", nil, "this is odd", "I'm here to help with your pregnancy journey."},
		{"thanks", nil, "Thanks!", "You're welcome!"},
		{"default", nil, "What about names?", "I'm here to help with your pregnancy journey."},
		{"profile topics need profile", nil, "What should I eat?", "I'm here to help"},
	}

	for _, c := range cases {
		got := Respond(c.profile, c.msg, now)
		if !strings.HasPrefix(got, c.prefix) {
			t.Errorf("%s: Respond(%q) = %q, want prefix %q", c.name, c.msg, got, c.prefix)
		}
	}
}
