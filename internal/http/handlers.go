package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/fare"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/maps"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/ride"
	"github.com/example/ride-dispatch/internal/storage"
)

type Server struct {
	Rides      *ride.Service
	Dispatcher *dispatch.Orchestrator
	Registry   *registry.Registry
	Geo        geo.Geo
	Maps       *maps.HTTPClient
	Kafka      *ingest.KafkaProducer

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires the process from config: Redis geo index and Postgres
// store when configured, in-memory fallbacks otherwise.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	var g geo.Geo
	if cfg.RedisAddr != "" {
		g = geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		g = geo.NewIndex()
	}

	var store storage.RideStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Warn("postgres unavailable, falling back to memory store", "error", err)
		} else {
			store = ps
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	mapsClient := maps.NewHTTPClient(cfg.NominatimURL, cfg.OSRMURL, cfg.GeocodeUserAgent, cfg.RouteCacheTTL)
	estimator := fare.NewEstimator(mapsClient)
	reg := registry.New(g, logging.Component(logger, "registry"))
	rides := ride.NewService(store, estimator, g, logging.Component(logger, "ride"))
	disp := dispatch.NewOrchestrator(mapsClient, g, reg, cfg.DispatchRadiusKm, logging.Component(logger, "dispatch"))

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	s := &Server{
		Rides:      rides,
		Dispatcher: disp,
		Registry:   reg,
		Geo:        g,
		Maps:       mapsClient,
		Kafka:      kp,
		logger:     logger,
		mux:        mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/fare", s.handleQuote).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}", s.handleGetRide).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/accept", s.handleAcceptRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/start", s.handleStartRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/end", s.handleEndRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/cancel", s.handleCancelRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/maps/suggestions", s.handleSuggestions).Methods("GET")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createRideRequest struct {
	RiderID      string              `json:"rider_id"`
	Pickup       string              `json:"pickup"`
	Destination  string              `json:"destination"`
	VehicleClass models.VehicleClass `json:"vehicle_class"`
}

type createRideResponse struct {
	Ride     models.Ride     `json:"ride"`
	Dispatch dispatch.Result `json:"dispatch"`
}

// Creation and fan-out are deliberately decoupled: once the ride record
// exists the request succeeds, whatever happens to the dispatch.
func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rd, err := s.Rides.Create(r.Context(), ride.CreateInput{
		RiderID:      req.RiderID,
		Pickup:       req.Pickup,
		Destination:  req.Destination,
		VehicleClass: req.VehicleClass,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	result, err := s.Dispatcher.Dispatch(r.Context(), rd)
	if err != nil {
		s.logger.Warn("dispatch failed after creation", "ride_id", rd.ID, "error", err)
	}
	writeJSON(w, http.StatusCreated, createRideResponse{Ride: *rd, Dispatch: result})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	pickup := r.URL.Query().Get("pickup")
	destination := r.URL.Query().Get("destination")
	f, err := s.Rides.Quote(r.Context(), pickup, destination)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	rd, err := s.Rides.Get(r.Context(), mux.Vars(r)["ride_id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rd.View())
}

type driverActionRequest struct {
	DriverID string `json:"driver_id"`
	Passcode string `json:"passcode,omitempty"`
}

func (s *Server) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	var req driverActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rd, err := s.Rides.Accept(r.Context(), mux.Vars(r)["ride_id"], req.DriverID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	// the rider gets the full record including the pickup passcode; the
	// accepting driver only ever sees the stripped view
	_ = s.Registry.Send(models.KindRider, rd.RiderID, "ride-confirmed", *rd)
	writeJSON(w, http.StatusOK, rd.View())
}

func (s *Server) handleStartRide(w http.ResponseWriter, r *http.Request) {
	var req driverActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rd, err := s.Rides.Start(r.Context(), mux.Vars(r)["ride_id"], req.DriverID, req.Passcode)
	if err != nil {
		writeAppError(w, err)
		return
	}
	_ = s.Registry.Send(models.KindRider, rd.RiderID, "ride-started", rd.View())
	writeJSON(w, http.StatusOK, rd.View())
}

func (s *Server) handleEndRide(w http.ResponseWriter, r *http.Request) {
	var req driverActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rd, err := s.Rides.End(r.Context(), mux.Vars(r)["ride_id"], req.DriverID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	_ = s.Registry.Send(models.KindRider, rd.RiderID, "ride-ended", rd.View())
	writeJSON(w, http.StatusOK, rd.View())
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	rd, err := s.Rides.Cancel(r.Context(), mux.Vars(r)["ride_id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	if rd.DriverID != "" {
		_ = s.Registry.Send(models.KindDriver, rd.DriverID, "ride-cancelled", rd.View())
	}
	writeJSON(w, http.StatusOK, rd.View())
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	suggestions, err := s.Maps.Suggest(r.Context(), q, 5)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

type driverLocationRequest struct {
	DriverID string       `json:"driver_id"`
	Loc      models.Coord `json:"loc"`
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var req driverLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Registry.UpdatePresence(req.DriverID, req.Loc); err != nil {
		writeAppError(w, err)
		return
	}
	if s.Kafka != nil {
		_ = s.Kafka.PublishLocation(models.DriverLocationUpdate{DriverID: req.DriverID, Loc: req.Loc})
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, apperrors.HTTPStatus(err), err.Error())
}
