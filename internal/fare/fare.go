// Package fare estimates trip prices from route distance and duration.
package fare

import (
	"context"
	"fmt"
	"math"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/maps"
	"github.com/example/ride-dispatch/internal/models"
)

// Rate is the pricing for one vehicle class.
type Rate struct {
	Base   float64
	PerKm  float64
	PerMin float64
}

var rates = map[models.VehicleClass]Rate{
	models.VehicleAuto: {Base: 30, PerKm: 10, PerMin: 2},
	models.VehicleCar:  {Base: 50, PerKm: 15, PerMin: 3},
	models.VehicleMoto: {Base: 20, PerKm: 8, PerMin: 1.5},
}

// Quoter is what the ride service depends on for fare estimates.
type Quoter interface {
	Quote(ctx context.Context, pickup, destination string) (models.Fare, error)
}

// Estimator geocodes both ends of the trip, asks the routing provider for
// distance and duration, and applies the per-class rate table.
type Estimator struct {
	Maps maps.Client
}

func NewEstimator(m maps.Client) *Estimator {
	return &Estimator{Maps: m}
}

func (e *Estimator) Quote(ctx context.Context, pickup, destination string) (models.Fare, error) {
	if pickup == "" || destination == "" {
		return models.Fare{}, fmt.Errorf("%w: pickup and destination are required", apperrors.ErrValidation)
	}
	from, err := e.Maps.Geocode(ctx, pickup)
	if err != nil {
		return models.Fare{}, err
	}
	to, err := e.Maps.Geocode(ctx, destination)
	if err != nil {
		return models.Fare{}, err
	}
	leg, err := e.Maps.Route(ctx, from, to)
	if err != nil {
		return models.Fare{}, err
	}
	return FromLeg(leg), nil
}

// FromLeg computes per-class fares for a known route leg.
func FromLeg(leg maps.RouteLeg) models.Fare {
	return models.Fare{
		Auto:            amount(models.VehicleAuto, leg),
		Car:             amount(models.VehicleCar, leg),
		Moto:            amount(models.VehicleMoto, leg),
		DistanceMeters:  leg.DistanceMeters,
		DurationSeconds: leg.DurationSeconds,
	}
}

func amount(v models.VehicleClass, leg maps.RouteLeg) float64 {
	r := rates[v]
	raw := r.Base + r.PerKm*(leg.DistanceMeters/1000) + r.PerMin*(leg.DurationSeconds/60)
	return math.Round(raw)
}
