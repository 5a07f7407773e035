package fare

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/maps"
	"github.com/example/ride-dispatch/internal/models"
)

type fakeMaps struct {
	coords map[string]models.Coord
	leg    maps.RouteLeg
	legErr error
}

func (f *fakeMaps) Geocode(ctx context.Context, address string) (models.Coord, error) {
	c, ok := f.coords[address]
	if !ok {
		return models.Coord{}, fmt.Errorf("%w: %q", apperrors.ErrGeocoding, address)
	}
	return c, nil
}

func (f *fakeMaps) Route(ctx context.Context, from, to models.Coord) (maps.RouteLeg, error) {
	if f.legErr != nil {
		return maps.RouteLeg{}, f.legErr
	}
	return f.leg, nil
}

func TestQuoteAppliesRateTable(t *testing.T) {
	m := &fakeMaps{
		coords: map[string]models.Coord{
			"a": {Lat: 23.26, Lng: 77.41},
			"b": {Lat: 23.23, Lng: 77.43},
		},
		// 4 km, 10 minutes
		leg: maps.RouteLeg{DistanceMeters: 4000, DurationSeconds: 600},
	}
	e := NewEstimator(m)
	f, err := e.Quote(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// car: 50 + 15*4 + 3*10 = 140
	if f.Car != 140 {
		t.Fatalf("car fare: expected 140, got %v", f.Car)
	}
	// auto: 30 + 10*4 + 2*10 = 90
	if f.Auto != 90 {
		t.Fatalf("auto fare: expected 90, got %v", f.Auto)
	}
	// moto: 20 + 8*4 + 1.5*10 = 67
	if f.Moto != 67 {
		t.Fatalf("moto fare: expected 67, got %v", f.Moto)
	}
	if f.DistanceMeters != 4000 || f.DurationSeconds != 600 {
		t.Fatalf("leg not carried through: %+v", f)
	}
}

func TestQuoteRequiresBothEnds(t *testing.T) {
	e := NewEstimator(&fakeMaps{})
	if _, err := e.Quote(context.Background(), "", "b"); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := e.Quote(context.Background(), "a", ""); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQuotePropagatesRouteFailure(t *testing.T) {
	m := &fakeMaps{
		coords: map[string]models.Coord{
			"a": {Lat: 1, Lng: 1},
			"b": {Lat: 2, Lng: 2},
		},
		legErr: apperrors.ErrNoRoute,
	}
	e := NewEstimator(m)
	if _, err := e.Quote(context.Background(), "a", "b"); !errors.Is(err, apperrors.ErrNoRoute) {
		t.Fatalf("expected no-route error, got %v", err)
	}
}

func TestForClass(t *testing.T) {
	f := models.Fare{Auto: 1, Car: 2, Moto: 3}
	if f.ForClass(models.VehicleAuto) != 1 || f.ForClass(models.VehicleCar) != 2 || f.ForClass(models.VehicleMoto) != 3 {
		t.Fatalf("ForClass mapping broken: %+v", f)
	}
}
