// Package dispatch fans a freshly created ride out to candidate drivers near
// the pickup point.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// DefaultRadiusKm bounds the candidate search around the pickup point.
const DefaultRadiusKm = 2.0

// Geocoder resolves the pickup address; the maps client satisfies it.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coord, error)
}

// Locator is the radius query surface of the geo index.
type Locator interface {
	WithinRadius(lat, lng, radiusKm float64) []models.DriverPresence
}

// Notifier delivers one event to one party, best effort. The connection
// registry satisfies it.
type Notifier interface {
	Send(kind models.PartyKind, id, event string, data any) error
}

// Result is the structured fan-out tally: who got the event, who was in
// range but unreachable. Drivers outside the radius appear in neither list.
type Result struct {
	Notified []string `json:"notified"`
	Skipped  []string `json:"skipped"`
}

type Orchestrator struct {
	Maps     Geocoder
	Locator  Locator
	Notifier Notifier
	RadiusKm float64
	Logger   *slog.Logger
}

func NewOrchestrator(maps Geocoder, locator Locator, notifier Notifier, radiusKm float64, logger *slog.Logger) *Orchestrator {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Orchestrator{Maps: maps, Locator: locator, Notifier: notifier, RadiusKm: radiusKm, Logger: logger}
}

// Dispatch resolves the pickup, queries nearby drivers, and pushes a
// passcode-stripped new-ride event to each reachable candidate. Delivery is
// fire-and-forget with no retry and no ordering guarantee. A geocoding
// failure is returned alongside an empty Result; the ride itself already
// exists and must not be rolled back by the caller.
func (o *Orchestrator) Dispatch(ctx context.Context, ride *models.Ride) (Result, error) {
	start := time.Now()
	defer func() { observability.DispatchLatency.Observe(time.Since(start).Seconds()) }()

	res := Result{Notified: []string{}, Skipped: []string{}}

	pickup, err := o.Maps.Geocode(ctx, ride.Pickup)
	if err != nil {
		o.Logger.Warn("dispatch geocode failed", "ride_id", ride.ID, "pickup", ride.Pickup, "error", err)
		return res, fmt.Errorf("%w: pickup %q", apperrors.ErrGeocoding, ride.Pickup)
	}

	candidates := o.Locator.WithinRadius(pickup.Lat, pickup.Lng, o.RadiusKm)
	view := ride.View()
	for _, c := range candidates {
		if err := o.Notifier.Send(models.KindDriver, c.DriverID, "new-ride", view); err != nil {
			res.Skipped = append(res.Skipped, c.DriverID)
			observability.DispatchSkippedTotal.Inc()
			continue
		}
		res.Notified = append(res.Notified, c.DriverID)
		observability.DispatchNotifiedTotal.Inc()
	}

	o.Logger.Info("dispatch fan-out complete",
		"ride_id", ride.ID,
		"candidates", len(candidates),
		"notified", len(res.Notified),
		"skipped", len(res.Skipped),
	)
	return res, nil
}
