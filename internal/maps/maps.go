// Package maps wraps the external geocoding and routing providers. The rest
// of the system only ever sees the Client interface; provider specifics
// (Nominatim, OSRM) stay in here.
package maps

import (
	"context"

	"github.com/example/ride-dispatch/internal/models"
)

// RouteLeg is the distance/duration answer for one coordinate pair.
type RouteLeg struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Client is the geocoding collaborator consumed by dispatch and fares.
type Client interface {
	Geocode(ctx context.Context, address string) (models.Coord, error)
	Route(ctx context.Context, from, to models.Coord) (RouteLeg, error)
}
