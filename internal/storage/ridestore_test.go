package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/models"
)

func TestMemoryStoreGetMissing(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.GetRide(context.Background(), "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	m := NewMemoryStore()
	if err := m.UpdateRide(context.Background(), &models.Ride{ID: "missing"}, models.StatusRequested); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreUpdateGuardsStatus(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.SaveRide(ctx, &models.Ride{ID: "r1", Status: models.StatusRequested}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// two writers each read the ride as requested; only the first commit lands
	first := &models.Ride{ID: "r1", DriverID: "d1", Status: models.StatusAccepted}
	if err := m.UpdateRide(ctx, first, models.StatusRequested); err != nil {
		t.Fatalf("first update: %v", err)
	}
	second := &models.Ride{ID: "r1", DriverID: "d2", Status: models.StatusAccepted}
	if err := m.UpdateRide(ctx, second, models.StatusRequested); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state for stale writer, got %v", err)
	}

	got, _ := m.GetRide(ctx, "r1")
	if got.DriverID != "d1" {
		t.Fatalf("stale writer overwrote the record: driver=%s", got.DriverID)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	m := NewMemoryStore()
	r := &models.Ride{ID: "r1", Status: models.StatusRequested}
	if err := m.SaveRide(context.Background(), r); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := m.GetRide(context.Background(), "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = models.StatusCompleted

	again, _ := m.GetRide(context.Background(), "r1")
	if again.Status != models.StatusRequested {
		t.Fatalf("mutating a returned ride leaked into the store: %s", again.Status)
	}
}
