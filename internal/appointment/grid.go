package appointment

import (
	"time"

	"github.com/dukerupert/bloom/internal/model"
)

type Day struct {
	Date         time.Time
	Key          string
	InMonth      bool
	IsToday      bool
	IsSelected   bool
	Appointments []model.Appointment
}

type Week struct {
	Days [7]Day
}

type Month struct {
	Year     int
	Month    time.Month
	Weeks    []Week
	Previous string // YYYY-MM
	Next     string
}

// MonthGrid lays out the month containing first as Sunday-first weeks,
// padding with days from the neighbouring months. Each day carries the
// appointments grouped under its key.
func MonthGrid(first, today time.Time, selected string, groups map[string][]model.Appointment) Month {
	loc := first.Location()
	start := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	todayKey := DateKey(today)

	m := Month{
		Year:     start.Year(),
		Month:    start.Month(),
		Previous: start.AddDate(0, -1, 0).Format("2006-01"),
		Next:     end.Format("2006-01"),
	}

	cursor := start.AddDate(0, 0, -int(start.Weekday()))
	for cursor.Before(end) {
		var w Week
		for i := range w.Days {
			key := DateKey(cursor)
			w.Days[i] = Day{
				Date:         cursor,
				Key:          key,
				InMonth:      cursor.Month() == start.Month(),
				IsToday:      key == todayKey,
				IsSelected:   key == selected,
				Appointments: groups[key],
			}
			cursor = cursor.AddDate(0, 0, 1)
		}
		m.Weeks = append(m.Weeks, w)
	}
	return m
}

// ParseMonth parses a YYYY-MM value, falling back to the month of fallback.
func ParseMonth(value string, fallback time.Time) time.Time {
	t, err := time.ParseInLocation("2006-01", value, fallback.Location())
	if err != nil {
		return time.Date(fallback.Year(), fallback.Month(), 1, 0, 0, 0, 0, fallback.Location())
	}
	return t
}
