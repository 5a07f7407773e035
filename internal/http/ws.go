package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/ride"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the inbound realtime protocol: a join binds the connection to
// an identity, update-location feeds driver presence.
type wsMessage struct {
	Event    string        `json:"event"`
	UserID   string        `json:"user_id"`
	UserType string        `json:"user_type"`
	Location *models.Coord `json:"location,omitempty"`
}

type wsError struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	handle := ride.NewID()
	go s.serveConn(handle, conn)
}

// serveConn owns one connection for its lifetime. Whatever ends the read
// loop, the binding is invalidated so later sends no-op instead of hitting a
// dead connection.
func (s *Server) serveConn(handle string, conn *websocket.Conn) {
	defer func() {
		s.Registry.Unbind(handle)
		_ = conn.Close()
	}()

	var bound struct {
		kind models.PartyKind
		id   string
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.logger.Debug("ws closed", "handle", handle, "error", err)
			return
		}
		switch msg.Event {
		case "join":
			kind := models.PartyKind(msg.UserType)
			if msg.UserID == "" || (kind != models.KindRider && kind != models.KindDriver) {
				_ = conn.WriteJSON(wsError{Event: "error", Data: map[string]string{"message": "invalid join"}})
				continue
			}
			s.Registry.Bind(kind, msg.UserID, handle, conn)
			bound.kind, bound.id = kind, msg.UserID
		case "update-location":
			if bound.kind != models.KindDriver {
				_ = conn.WriteJSON(wsError{Event: "error", Data: map[string]string{"message": "join as driver first"}})
				continue
			}
			if msg.Location == nil {
				_ = s.Registry.Send(bound.kind, bound.id, "error", map[string]string{"message": "invalid location data"})
				continue
			}
			if err := s.Registry.UpdatePresence(bound.id, *msg.Location); err != nil {
				_ = s.Registry.Send(bound.kind, bound.id, "error", map[string]string{"message": err.Error()})
				continue
			}
			if s.Kafka != nil {
				_ = s.Kafka.PublishLocation(models.DriverLocationUpdate{DriverID: bound.id, Loc: *msg.Location})
			}
		default:
			s.logger.Debug("ws unknown event", "handle", handle, "event", msg.Event)
		}
	}
}
