package maps

import (
	"context"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// HTTPClient composes the Nominatim geocoder and OSRM router behind the
// Client interface, with an optional TTL cache in front of route lookups.
type HTTPClient struct {
	Geocoder *NominatimClient
	Router   *OSRMClient
	Cache    *RouteCache
}

func NewHTTPClient(nominatimURL, osrmURL, userAgent string, cacheTTL time.Duration) *HTTPClient {
	c := &HTTPClient{
		Geocoder: NewNominatimClient(nominatimURL, userAgent),
		Router:   NewOSRMClient(osrmURL),
	}
	if cacheTTL > 0 {
		c.Cache = NewRouteCache(cacheTTL)
	}
	return c
}

func (h *HTTPClient) Geocode(ctx context.Context, address string) (models.Coord, error) {
	return h.Geocoder.Geocode(ctx, address)
}

func (h *HTTPClient) Route(ctx context.Context, from, to models.Coord) (RouteLeg, error) {
	if h.Cache != nil {
		if leg, ok := h.Cache.Get(from, to); ok {
			return leg, nil
		}
	}
	leg, err := h.Router.Route(ctx, from, to)
	if err != nil {
		return RouteLeg{}, err
	}
	if h.Cache != nil {
		h.Cache.Set(from, to, leg)
	}
	return leg, nil
}

func (h *HTTPClient) Suggest(ctx context.Context, input string, limit int) ([]string, error) {
	return h.Geocoder.Suggest(ctx, input, limit)
}
