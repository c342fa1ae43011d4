package model

const (
	ReminderDayBefore = "day_before"
	ReminderSameDay   = "same_day"
)
