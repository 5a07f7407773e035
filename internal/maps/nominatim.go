package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/models"
)

// NominatimClient resolves free-text addresses against a Nominatim server.
// Nominatim requires a meaningful User-Agent on every request.
type NominatimClient struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

func NewNominatimClient(endpoint, userAgent string) *NominatimClient {
	return &NominatimClient{Endpoint: endpoint, UserAgent: userAgent, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (n *NominatimClient) Geocode(ctx context.Context, address string) (models.Coord, error) {
	results, err := n.search(ctx, address, 1)
	if err != nil {
		return models.Coord{}, err
	}
	if len(results) == 0 {
		return models.Coord{}, fmt.Errorf("%w: %q", apperrors.ErrGeocoding, address)
	}
	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLng != nil {
		return models.Coord{}, fmt.Errorf("%w: malformed result for %q", apperrors.ErrGeocoding, address)
	}
	return models.Coord{Lat: lat, Lng: lng}, nil
}

// Suggest returns up to limit display names matching the partial input,
// mirroring a places-autocomplete endpoint.
func (n *NominatimClient) Suggest(ctx context.Context, input string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	results, err := n.search(ctx, input, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.DisplayName != "" {
			out = append(out, r.DisplayName)
		}
	}
	return out, nil
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (n *NominatimClient) search(ctx context.Context, q string, limit int) ([]nominatimResult, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", n.Endpoint, url.QueryEscape(q), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrGeocoding, err)
	}
	req.Header.Set("User-Agent", n.UserAgent)
	resp, err := n.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrGeocoding, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: nominatim status %d", apperrors.ErrGeocoding, resp.StatusCode)
	}
	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrGeocoding, err)
	}
	return results, nil
}
