package appointment

import (
	"context"
	"errors"
	"sync"

	"github.com/dukerupert/bloom/internal/model"
)

var (
	ErrNoSession = errors.New("no signed-in user")
	ErrNotFound  = errors.New("appointment not found")
)

// Backend is the persistent appointment store.
type Backend interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.Appointment, error)
	Create(ctx context.Context, ownerID string, f model.AppointmentFields) (*model.Appointment, error)
	Update(ctx context.Context, ownerID, id string, expectedVersion int64, f model.AppointmentFields) (*model.Appointment, error)
	Delete(ctx context.Context, ownerID, id string) (int64, error)
}

// Book is one owner's local copy of their appointments. Creates and updates
// re-fetch the whole set on success; deletes drop the record locally. A
// failed mutation leaves the local copy untouched.
type Book struct {
	backend Backend
	ownerID string

	mu    sync.RWMutex
	items []model.Appointment
}

func NewBook(backend Backend, ownerID string) *Book {
	return &Book{backend: backend, ownerID: ownerID}
}

// Appointments returns a copy of the local collection.
func (b *Book) Appointments() []model.Appointment {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Appointment, len(b.items))
	copy(out, b.items)
	return out
}

// Refresh replaces the local collection with the owner's stored set.
// Without an owner it does nothing.
func (b *Book) Refresh(ctx context.Context) error {
	if b.ownerID == "" {
		return nil
	}
	items, err := b.backend.ListByOwner(ctx, b.ownerID)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.items = items
	b.mu.Unlock()
	return nil
}

func (b *Book) Create(ctx context.Context, f model.AppointmentFields) (*model.Appointment, error) {
	if b.ownerID == "" {
		return nil, ErrNoSession
	}
	f, err := Normalize(f)
	if err != nil {
		return nil, err
	}
	a, err := b.backend.Create(ctx, b.ownerID, f)
	if err != nil {
		return nil, err
	}
	if err := b.Refresh(ctx); err != nil {
		return a, err
	}
	return a, nil
}

// Update overwrites the editable fields of id. expectedVersion of zero skips
// the concurrent-edit check.
func (b *Book) Update(ctx context.Context, id string, expectedVersion int64, f model.AppointmentFields) (*model.Appointment, error) {
	if b.ownerID == "" {
		return nil, ErrNoSession
	}
	f, err := Normalize(f)
	if err != nil {
		return nil, err
	}
	a, err := b.backend.Update(ctx, b.ownerID, id, expectedVersion, f)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if err := b.Refresh(ctx); err != nil {
		return a, err
	}
	return a, nil
}

// Delete removes id from the store and from the local collection. A missing
// id is a no-op that reports zero removed rows.
func (b *Book) Delete(ctx context.Context, id string) (int64, error) {
	if b.ownerID == "" {
		return 0, nil
	}
	n, err := b.backend.Delete(ctx, b.ownerID, id)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	kept := b.items[:0:0]
	for _, a := range b.items {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	b.items = kept
	b.mu.Unlock()
	return n, nil
}
