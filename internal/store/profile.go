package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/bloom/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var symptoms, allergies string
	err := scanner.Scan(&p.UserID, &p.Name, &p.DueDate, &symptoms, &allergies, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(symptoms), &p.Symptoms); err != nil {
		return nil, fmt.Errorf("decode symptoms: %w", err)
	}
	if err := json.Unmarshal([]byte(allergies), &p.Allergies); err != nil {
		return nil, fmt.Errorf("decode allergies: %w", err)
	}
	return &p, nil
}

const profileCols = `user_id, name, due_date, symptoms, allergies, created_at, updated_at`

// Get returns the profile for userID, or nil if none has been saved.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *ProfileStore) Upsert(ctx context.Context, p model.Profile) (*model.Profile, error) {
	symptoms, err := encodeList(p.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("encode symptoms: %w", err)
	}
	allergies, err := encodeList(p.Allergies)
	if err != nil {
		return nil, fmt.Errorf("encode allergies: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, due_date, symptoms, allergies) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   name = excluded.name,
		   due_date = excluded.due_date,
		   symptoms = excluded.symptoms,
		   allergies = excluded.allergies,
		   updated_at = CURRENT_TIMESTAMP`,
		p.UserID, p.Name, p.DueDate, symptoms, allergies,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return s.Get(ctx, p.UserID)
}
