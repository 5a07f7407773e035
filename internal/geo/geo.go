package geo

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Geo is the location index consumed by dispatch and the connection layer.
type Geo interface {
	UpdateLocation(driverID string, loc models.Coord)
	SetAvailable(driverID string, available bool)
	WithinRadius(lat, lng, radiusKm float64) []models.DriverPresence
}

// Index is the in-memory implementation used when Redis is not configured.
type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.DriverPresence
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.DriverPresence)}
}

// UpdateLocation is last-write-wins per driver. A driver seen for the first
// time starts out available; availability set by ride assignment survives
// later location updates.
func (g *Index) UpdateLocation(driverID string, loc models.Coord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.drivers[driverID]
	if !ok {
		p = models.DriverPresence{DriverID: driverID, Available: true}
	}
	p.Loc = loc
	p.Updated = time.Now()
	g.drivers[driverID] = p
}

func (g *Index) SetAvailable(driverID string, available bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.drivers[driverID]
	if !ok {
		return
	}
	p.Available = available
	g.drivers[driverID] = p
}

// WithinRadius returns available drivers whose great-circle distance to the
// point is at most radiusKm, nearest first. Empty when none qualify.
// Naive scan; in prod use a geo-hash or H3 backed index.
func (g *Index) WithinRadius(lat, lng, radiusKm float64) []models.DriverPresence {
	maxMeters := radiusKm * 1000
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		p    models.DriverPresence
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for _, p := range g.drivers {
		if !p.Available {
			continue
		}
		dist := Haversine(lat, lng, p.Loc.Lat, p.Loc.Lng)
		if dist > maxMeters {
			continue
		}
		arr = append(arr, pair{p, dist})
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].dist < arr[j].dist })
	out := make([]models.DriverPresence, 0, len(arr))
	for _, a := range arr {
		out = append(out, a.p)
	}
	return out
}

// Haversine distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
