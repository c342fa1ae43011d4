// Package appointment partitions, groups and lays out a user's appointments
// for the list and calendar views, and keeps the per-session view state.
package appointment

import (
	"sort"
	"time"

	"github.com/dukerupert/bloom/internal/model"
)

// DateKey formats t as the canonical YYYY-MM-DD key in t's own location.
func DateKey(t time.Time) string {
	return t.Format(model.DateLayout)
}

// Midnight returns the start of t's calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate parses a YYYY-MM-DD key as midnight in loc.
func ParseDate(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout, key, loc)
}

// Partition splits appts into upcoming (date on or after today's midnight)
// and past (date before it). Both are sorted ascending by date; appointments
// sharing a date keep their input order.
func Partition(appts []model.Appointment, today time.Time) (upcoming, past []model.Appointment) {
	cutoff := DateKey(Midnight(today))
	upcoming = []model.Appointment{}
	past = []model.Appointment{}
	for _, a := range appts {
		if a.Date < cutoff {
			past = append(past, a)
		} else {
			upcoming = append(upcoming, a)
		}
	}
	sortByDate(upcoming)
	sortByDate(past)
	return upcoming, past
}

func sortByDate(appts []model.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].Date < appts[j].Date
	})
}

// GroupByDate maps each date key to the appointments on that date, in input order.
func GroupByDate(appts []model.Appointment) map[string][]model.Appointment {
	groups := make(map[string][]model.Appointment)
	for _, a := range appts {
		groups[a.Date] = append(groups[a.Date], a)
	}
	return groups
}
