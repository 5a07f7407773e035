// Package registry binds rider and driver identities to their live realtime
// connections and exposes best-effort event delivery. Bindings are process
// local and rebuilt from scratch after a restart.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// ErrNoBinding is returned by Send when the party has no live connection.
// Callers treat it as "not delivered", never as a hard failure.
var ErrNoBinding = errors.New("no connection binding")

// Conn is the outbound half of a realtime connection. *websocket.Conn
// satisfies it; tests use fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Locations is the slice of the geo index the registry needs for
// presence updates.
type Locations interface {
	UpdateLocation(driverID string, loc models.Coord)
}

type party struct {
	kind models.PartyKind
	id   string
}

// session serializes writes to one connection; gorilla/websocket allows at
// most one concurrent writer.
type session struct {
	handle string
	conn   Conn
	mu     sync.Mutex
}

func (s *session) send(event string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(envelope{Event: event, Data: data})
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[party]*session
	byHandle map[string]party

	locations Locations
	logger    *slog.Logger
}

func New(locations Locations, logger *slog.Logger) *Registry {
	return &Registry{
		sessions:  make(map[party]*session),
		byHandle:  make(map[string]party),
		locations: locations,
		logger:    logger,
	}
}

// Bind records the current connection for a party, overwriting any previous
// binding (reconnect wins). A handle that was already bound to a different
// party is a rebind: the old party's session is torn down first so it cannot
// outlive the connection.
func (r *Registry) Bind(kind models.PartyKind, id, handle string, conn Conn) {
	p := party{kind: kind, id: id}
	r.mu.Lock()
	if prev, ok := r.byHandle[handle]; ok && prev != p {
		if s, live := r.sessions[prev]; live && s.handle == handle {
			delete(r.sessions, prev)
		}
	}
	if old, ok := r.sessions[p]; ok {
		delete(r.byHandle, old.handle)
	}
	r.sessions[p] = &session{handle: handle, conn: conn}
	r.byHandle[handle] = p
	n := len(r.sessions)
	r.mu.Unlock()
	observability.ConnectionsActive.Set(float64(n))
	r.logger.Info("connection bound", "kind", string(kind), "id", id, "handle", handle)
}

// Unbind invalidates the binding behind a connection handle so later sends
// no-op instead of targeting a stale connection. Idempotent; a handle that
// was already replaced by a reconnect is left alone.
func (r *Registry) Unbind(handle string) {
	r.mu.Lock()
	p, ok := r.byHandle[handle]
	if ok {
		if s, live := r.sessions[p]; live && s.handle == handle {
			delete(r.sessions, p)
		}
		delete(r.byHandle, handle)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if ok {
		observability.ConnectionsActive.Set(float64(n))
		r.logger.Info("connection unbound", "kind", string(p.kind), "id", p.id, "handle", handle)
	}
}

// Send pushes one event to a party. Best effort: a missing binding returns
// ErrNoBinding, a write failure returns the transport error; neither mutates
// registry state and neither should be escalated past the caller's tally.
func (r *Registry) Send(kind models.PartyKind, id, event string, data any) error {
	r.mu.RLock()
	s, ok := r.sessions[party{kind: kind, id: id}]
	r.mu.RUnlock()
	if !ok {
		observability.EventsDroppedTotal.Inc()
		r.logger.Debug("send skipped, no binding", "kind", string(kind), "id", id, "event", event)
		return ErrNoBinding
	}
	if err := s.send(event, data); err != nil {
		observability.EventsDroppedTotal.Inc()
		r.logger.Warn("send failed", "kind", string(kind), "id", id, "event", event, "error", err)
		return err
	}
	observability.EventsSentTotal.Inc()
	return nil
}

// UpdatePresence validates and forwards a driver location to the geo index.
func (r *Registry) UpdatePresence(driverID string, loc models.Coord) error {
	if driverID == "" {
		return fmt.Errorf("%w: driver id is required", apperrors.ErrValidation)
	}
	if !validCoord(loc) {
		return fmt.Errorf("%w: invalid coordinates (%v, %v)", apperrors.ErrValidation, loc.Lat, loc.Lng)
	}
	r.locations.UpdateLocation(driverID, loc)
	return nil
}

func validCoord(c models.Coord) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
