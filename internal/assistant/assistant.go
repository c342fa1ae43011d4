// Package assistant answers pregnancy questions, either through a hosted
// language model or, when none is configured, a small keyword responder.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dukerupert/bloom/internal/model"
	"golang.org/x/time/rate"
)

// FallbackReply is shown whenever the language model cannot answer.
const FallbackReply = "I'm sorry, I'm having trouble responding right now. Please try again later."

var ErrEmptyMessage = errors.New("message is empty")

// Generator turns one prompt into one reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant sends one prompt per user message. It never retries.
type Assistant struct {
	generator Generator
	limiter   *rate.Limiter
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Assistant)

// WithRateLimit caps outbound generator calls at rps with the given burst.
// Messages over the limit get FallbackReply at once.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Assistant) {
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Assistant) {
		a.now = now
	}
}

// New builds an Assistant. A nil generator selects the offline responder.
func New(generator Generator, logger *slog.Logger, opts ...Option) *Assistant {
	a := &Assistant{
		generator: generator,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Online reports whether replies come from the language model.
func (a *Assistant) Online() bool {
	return a.generator != nil
}

// Greeting is the first message shown in a new conversation.
func Greeting(profile *model.Profile) string {
	name := "there"
	if profile != nil && strings.TrimSpace(profile.Name) != "" {
		name = strings.TrimSpace(profile.Name)
	}
	return fmt.Sprintf("Hello %s! I'm your pregnancy assistant. How can I help you today?", name)
}

// Reply answers message. Generator failures are logged and replaced by
// FallbackReply; only an empty message is reported as an error.
func (a *Assistant) Reply(ctx context.Context, profile *model.Profile, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	if a.generator == nil {
		return Respond(profile, message, a.now()), nil
	}

	if a.limiter != nil && !a.limiter.Allow() {
		a.logger.Warn("chat throttled")
		return FallbackReply, nil
	}

	reply, err := a.generator.Generate(ctx, BuildPrompt(profile, message, a.now()))
	if err != nil {
		a.logger.Error("generate reply", "error", err)
		return FallbackReply, nil
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		a.logger.Warn("generator returned an empty reply")
		return FallbackReply, nil
	}
	return reply, nil
}

// BuildPrompt wraps the user's message with what is known from their profile.
func BuildPrompt(profile *model.Profile, message string, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a warm, careful pregnancy assistant. Give general information only and ")
	b.WriteString("recommend contacting a healthcare provider for anything urgent or personal.\n")

	if profile != nil {
		if profile.Name != "" {
			fmt.Fprintf(&b, "The user's name is %s.\n", profile.Name)
		}
		if week, ok := WeekFromDueDate(profile.DueDate, now); ok {
			fmt.Fprintf(&b, "She is in week %d of her pregnancy.\n", week)
		}
		if len(profile.Symptoms) > 0 {
			fmt.Fprintf(&b, "Reported symptoms: %s.\n", strings.Join(profile.Symptoms, ", "))
		}
		if len(profile.Allergies) > 0 {
			fmt.Fprintf(&b, "Known allergies: %s.\n", strings.Join(profile.Allergies, ", "))
		}
	}

	b.WriteString("\nUser: ")
	b.WriteString(message)
	return b.String()
}

// PregnancyWeek counts weeks from a 40-week term ending on due, clamped to [0, 42].
func PregnancyWeek(due, now time.Time) int {
	weeksLeft := int(math.Floor(due.Sub(now).Hours() / (24 * 7)))
	week := 40 - weeksLeft
	if week < 0 {
		return 0
	}
	if week > 42 {
		return 42
	}
	return week
}

// WeekFromDueDate parses a YYYY-MM-DD due date and returns the current week.
func WeekFromDueDate(due string, now time.Time) (int, bool) {
	if due == "" {
		return 0, false
	}
	d, err := time.ParseInLocation(model.DateLayout, due, now.Location())
	if err != nil {
		return 0, false
	}
	return PregnancyWeek(d, now), true
}
