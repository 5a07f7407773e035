package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/models"
)

// RideStore defines persistence operations for rides. UpdateRide commits the
// new record only while the stored status still equals from; a lost race
// surfaces as ErrInvalidState so concurrent writers get exactly one winner
// even when several processes share the store.
type RideStore interface {
	SaveRide(ctx context.Context, r *models.Ride) error
	UpdateRide(ctx context.Context, r *models.Ride, from models.RideStatus) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
}

type MemoryStore struct {
	mu    sync.RWMutex
	rides map[string]models.Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]models.Ride)}
}

// The memory store keeps copies on both sides of the API so a caller
// mutating a returned ride cannot corrupt the stored record.
func (m *MemoryStore) SaveRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) UpdateRide(ctx context.Context, r *models.Ride, from models.RideStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rides[r.ID]
	if !ok {
		return fmt.Errorf("%w: ride %s", apperrors.ErrNotFound, r.ID)
	}
	if cur.Status != from {
		return fmt.Errorf("%w: ride %s is %s, not %s", apperrors.ErrInvalidState, r.ID, cur.Status, from)
	}
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, fmt.Errorf("%w: ride %s", apperrors.ErrNotFound, id)
	}
	return &r, nil
}
