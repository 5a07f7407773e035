package geo

import (
    "testing"

    "github.com/example/ride-dispatch/internal/models"
)

func TestHaversineZero(t *testing.T) {
    d := Haversine(23.26, 77.41, 23.26, 77.41)
    if d != 0 {
        t.Fatalf("expected 0, got %f", d)
    }
}

// pickup resolves near New Market, Bhopal; one driver ~500m out, one ~3km.
func TestWithinRadiusFiltersByDistance(t *testing.T) {
    idx := NewIndex()
    idx.UpdateLocation("near", models.Coord{Lat: 23.2645, Lng: 77.41})
    idx.UpdateLocation("far", models.Coord{Lat: 23.287, Lng: 77.41})

    got := idx.WithinRadius(23.26, 77.41, 2)
    if len(got) != 1 {
        t.Fatalf("expected 1 candidate, got %d", len(got))
    }
    if got[0].DriverID != "near" {
        t.Fatalf("expected near driver, got %s", got[0].DriverID)
    }
}

func TestWithinRadiusEmptyWhenNoneQualify(t *testing.T) {
    idx := NewIndex()
    idx.UpdateLocation("far", models.Coord{Lat: 24.0, Lng: 77.41})
    got := idx.WithinRadius(23.26, 77.41, 2)
    if len(got) != 0 {
        t.Fatalf("expected empty result, got %d", len(got))
    }
}

func TestWithinRadiusExcludesUnavailable(t *testing.T) {
    idx := NewIndex()
    idx.UpdateLocation("busy", models.Coord{Lat: 23.2605, Lng: 77.41})
    idx.SetAvailable("busy", false)
    if got := idx.WithinRadius(23.26, 77.41, 2); len(got) != 0 {
        t.Fatalf("engaged driver should not match, got %d", len(got))
    }
    idx.SetAvailable("busy", true)
    if got := idx.WithinRadius(23.26, 77.41, 2); len(got) != 1 {
        t.Fatalf("expected driver back in pool, got %d", len(got))
    }
}

func TestUpdateLocationKeepsAvailability(t *testing.T) {
    idx := NewIndex()
    idx.UpdateLocation("d1", models.Coord{Lat: 23.26, Lng: 77.41})
    idx.SetAvailable("d1", false)
    idx.UpdateLocation("d1", models.Coord{Lat: 23.261, Lng: 77.411})
    if got := idx.WithinRadius(23.26, 77.41, 2); len(got) != 0 {
        t.Fatalf("location update must not re-enable an engaged driver")
    }
}

func TestWithinRadiusNearestFirst(t *testing.T) {
    idx := NewIndex()
    idx.UpdateLocation("b", models.Coord{Lat: 23.27, Lng: 77.41})
    idx.UpdateLocation("a", models.Coord{Lat: 23.261, Lng: 77.41})
    got := idx.WithinRadius(23.26, 77.41, 5)
    if len(got) != 2 || got[0].DriverID != "a" {
        t.Fatalf("expected nearest first, got %+v", got)
    }
}
