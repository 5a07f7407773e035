package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/models"
)

// RedisGeo implements Geo on Redis GEO commands so multiple API processes
// and the Kafka consumer share one presence view.
type RedisGeo struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key, ctx: context.Background()}
}

func (r *RedisGeo) UpdateLocation(driverID string, loc models.Coord) {
	// GEOADD for the point, hash for per-driver metadata
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: loc.Lng, Latitude: loc.Lat, Name: driverID}).Result()
	_ = r.client.HSetNX(r.ctx, presenceKey(driverID), "available", "true").Err()
	_ = r.client.HSet(r.ctx, presenceKey(driverID), "updated", time.Now().Format(time.RFC3339)).Err()
}

func (r *RedisGeo) SetAvailable(driverID string, available bool) {
	v := "false"
	if available {
		v = "true"
	}
	_ = r.client.HSet(r.ctx, presenceKey(driverID), "available", v).Err()
}

func (r *RedisGeo) WithinRadius(lat, lng, radiusKm float64) []models.DriverPresence {
	res, err := r.client.GeoRadius(r.ctx, r.key, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm * 1000,
		Unit:      "m",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.DriverPresence, 0, len(res))
	for _, g := range res {
		p := models.DriverPresence{DriverID: g.Name, Available: true}
		p.Loc.Lat = g.Latitude
		p.Loc.Lng = g.Longitude
		if m, err := r.client.HGetAll(r.ctx, presenceKey(g.Name)).Result(); err == nil {
			if v, ok := m["available"]; ok {
				p.Available = v == "true"
			}
			if v, ok := m["updated"]; ok {
				if ts, err := time.Parse(time.RFC3339, v); err == nil {
					p.Updated = ts
				}
			}
		}
		if !p.Available {
			continue
		}
		out = append(out, p)
	}
	return out
}

func presenceKey(id string) string { return "driver:presence:" + id }
