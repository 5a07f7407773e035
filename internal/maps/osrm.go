package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/models"
)

// OSRMClient performs route lookups against an OSRM HTTP server.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

// Route queries OSRM /route between points. OSRM expects lng,lat pairs.
func (o *OSRMClient) Route(ctx context.Context, from, to models.Coord) (RouteLeg, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false", o.Endpoint, from.Lng, from.Lat, to.Lng, to.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RouteLeg{}, fmt.Errorf("%w: %v", apperrors.ErrNoRoute, err)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return RouteLeg{}, fmt.Errorf("%w: %v", apperrors.ErrNoRoute, err)
	}
	defer resp.Body.Close()
	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RouteLeg{}, fmt.Errorf("%w: %v", apperrors.ErrNoRoute, err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return RouteLeg{}, fmt.Errorf("%w: osrm code %v", apperrors.ErrNoRoute, out.Code)
	}
	return RouteLeg{DistanceMeters: out.Routes[0].Distance, DurationSeconds: out.Routes[0].Duration}, nil
}
