package model

import "time"

type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	DueDate   string    `json:"due_date"`
	Symptoms  []string  `json:"symptoms"`
	Allergies []string  `json:"allergies"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
