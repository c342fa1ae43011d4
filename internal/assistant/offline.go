package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/bloom/internal/model"
)

// Respond is the keyword responder used when no language model is configured.
func Respond(profile *model.Profile, message string, now time.Time) string {
	lower := strings.ToLower(message)

	if profile != nil {
		if containsAny(lower, "week", "progress") {
			if week, ok := WeekFromDueDate(profile.DueDate, now); ok {
				return fmt.Sprintf("You're currently in week %d of your pregnancy. This is an exciting time! The baby is continuing to develop and grow.", week)
			}
		}

		if containsAny(lower, "symptom", "feeling") {
			if len(profile.Symptoms) > 0 {
				return fmt.Sprintf("I see you've mentioned experiencing %s. These are common symptoms during pregnancy. Make sure to discuss any severe or concerning symptoms with your healthcare provider.", strings.Join(profile.Symptoms, ", "))
			}
			return "How are you feeling today? It's important to keep track of any symptoms you experience during your pregnancy."
		}

		if strings.Contains(lower, "allerg") {
			if len(profile.Allergies) > 0 {
				return fmt.Sprintf("I see you've noted allergies to %s. It's important to avoid these allergens and discuss with your doctor how to manage them during pregnancy.", strings.Join(profile.Allergies, ", "))
			}
			return "I don't see any allergies listed in your profile. If you have any allergies, please update your profile so I can provide better guidance."
		}

		if containsAny(lower, "eat", "food", "diet") {
			return "A balanced diet is crucial during pregnancy. Focus on fruits, vegetables, whole grains, lean proteins, and dairy. Avoid raw or undercooked meats, unpasteurized dairy, high-mercury fish, and excessive caffeine."
		}

		if containsAny(lower, "exercise", "workout") {
			return "Regular exercise during pregnancy can help reduce backaches, constipation, bloating, and swelling. Good options include walking, swimming, and prenatal yoga. Always consult with your healthcare provider before starting any exercise routine."
		}
	}

	if hasWord(lower, "hello", "hi") {
		return "Hello! How can I assist you with your pregnancy journey today?"
	}

	if strings.Contains(lower, "thank") {
		return "You're welcome! I'm here to help with any questions you have about your pregnancy."
	}

	return "I'm here to help with your pregnancy journey. You can ask me about your symptoms, diet recommendations, safe exercises, or general pregnancy information."
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// hasWord matches whole words so "hi" does not fire on "this".
func hasWord(s string, words ...string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
