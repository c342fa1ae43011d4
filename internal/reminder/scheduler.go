// Package reminder sends daily appointment reminders by email and over the
// owner's open websocket connections.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/bloom/internal/appointment"
	"github.com/dukerupert/bloom/internal/model"
	"github.com/dukerupert/bloom/internal/store"
	"github.com/dukerupert/bloom/internal/websocket"
)

const DefaultSpec = "0 8 * * *"

// Mailer delivers a reminder email.
type Mailer interface {
	Configured() bool
	SendAppointmentReminder(ctx context.Context, toEmail string, a model.Appointment, when string) error
}

// Scheduler runs the reminder pass on a cron schedule.
type Scheduler struct {
	cron         *cron.Cron
	spec         string
	location     *time.Location
	appointments *store.AppointmentStore
	deliveries   *store.ReminderStore
	users        *store.UserStore
	mailer       Mailer
	hub          *websocket.Hub
	logger       *slog.Logger
	now          func() time.Time
}

// NewScheduler creates a reminder scheduler. mailer and hub may be nil.
func NewScheduler(spec string, loc *time.Location, appts *store.AppointmentStore, deliveries *store.ReminderStore, users *store.UserStore, mailer Mailer, hub *websocket.Hub, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		spec:         spec,
		location:     loc,
		appointments: appts,
		deliveries:   deliveries,
		users:        users,
		mailer:       mailer,
		hub:          hub,
		logger:       logger,
		now:          time.Now,
	}
}

// Start registers the daily job and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		sent, err := s.RunOnce(ctx, s.now())
		if err != nil {
			s.logger.Error("reminder run failed", "error", err)
			return
		}
		s.logger.Info("reminder run complete", "sent", sent)
	})
	if err != nil {
		return fmt.Errorf("add reminder job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("reminder scheduler started", "spec", s.spec, "tz", s.location.String())
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce delivers reminders for appointments dated today or tomorrow
// relative to now and returns how many were sent. Each appointment is
// reminded at most once per kind.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	today := appointment.Midnight(now.In(s.location))
	passes := []struct {
		date time.Time
		kind string
		when string
	}{
		{today, model.ReminderSameDay, "today"},
		{today.AddDate(0, 0, 1), model.ReminderDayBefore, "tomorrow"},
	}

	var sent int
	for _, p := range passes {
		appts, err := s.appointments.ListWithReminderOn(ctx, appointment.DateKey(p.date))
		if err != nil {
			return sent, err
		}
		for _, a := range appts {
			done, err := s.deliveries.WasSent(ctx, a.ID, p.kind)
			if err != nil {
				return sent, err
			}
			if done {
				continue
			}
			s.deliver(ctx, a, p.when)
			if err := s.deliveries.RecordSent(ctx, a.ID, p.kind); err != nil {
				return sent, err
			}
			sent++
		}
	}
	return sent, nil
}

func (s *Scheduler) deliver(ctx context.Context, a model.Appointment, when string) {
	if s.hub != nil {
		s.hub.BroadcastTo(a.OwnerID, websocket.NewMessage("appointment", "reminder", a.ID, map[string]any{
			"date":  a.Date,
			"title": a.Title,
			"when":  when,
		}))
	}

	if s.mailer == nil || !s.mailer.Configured() {
		return
	}
	user, err := s.users.GetByID(a.OwnerID)
	if err != nil || user == nil {
		s.logger.Warn("reminder owner lookup failed", "appointment_id", a.ID, "error", err)
		return
	}
	if err := s.mailer.SendAppointmentReminder(ctx, user.Email, a, when); err != nil {
		s.logger.Error("send reminder email", "appointment_id", a.ID, "error", err)
	}
}
