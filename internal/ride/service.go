// Package ride owns the trip lifecycle: requested → accepted → started →
// completed, with cancelled reachable before pickup. All transitions on one
// ride id run under a per-id critical section.
package ride

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/fare"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/storage"
)

// Availability is the slice of the geo index the lifecycle needs: engaged
// drivers leave the matching pool, finished ones re-enter it.
type Availability interface {
	SetAvailable(driverID string, available bool)
}

type Service struct {
	store    storage.RideStore
	fares    fare.Quoter
	presence Availability
	locks    *keyedLocks
	logger   *slog.Logger
}

func NewService(store storage.RideStore, fares fare.Quoter, presence Availability, logger *slog.Logger) *Service {
	return &Service{store: store, fares: fares, presence: presence, locks: newKeyedLocks(), logger: logger}
}

type CreateInput struct {
	RiderID      string
	Pickup       string
	Destination  string
	VehicleClass models.VehicleClass
}

// Create validates the request and persists a new ride in state requested.
// No driver, no passcode; those belong to Accept.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Ride, error) {
	switch {
	case in.RiderID == "":
		return nil, fmt.Errorf("%w: rider id is required", apperrors.ErrValidation)
	case in.Pickup == "":
		return nil, fmt.Errorf("%w: pickup is required", apperrors.ErrValidation)
	case in.Destination == "":
		return nil, fmt.Errorf("%w: destination is required", apperrors.ErrValidation)
	case !models.ValidVehicleClass(in.VehicleClass):
		return nil, fmt.Errorf("%w: unknown vehicle class %q", apperrors.ErrValidation, in.VehicleClass)
	}
	now := time.Now()
	r := &models.Ride{
		ID:           NewID(),
		RiderID:      in.RiderID,
		Pickup:       in.Pickup,
		Destination:  in.Destination,
		VehicleClass: in.VehicleClass,
		Status:       models.StatusRequested,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SaveRide(ctx, r); err != nil {
		return nil, err
	}
	observability.RidesCreatedTotal.Inc()
	s.logger.Info("ride created", "ride_id", r.ID, "rider_id", r.RiderID, "vehicle_class", string(r.VehicleClass))
	return r, nil
}

// Accept transitions requested → accepted, assigns the driver, and mints the
// one-time pickup passcode. Exactly one of any set of concurrent acceptors
// wins; the rest observe the state error.
func (s *Service) Accept(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver id is required", apperrors.ErrValidation)
	}
	l := s.locks.get(rideID)
	l.Lock()
	defer l.Unlock()

	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusRequested {
		observability.RideTransitionsTotal.WithLabelValues("accept", "rejected").Inc()
		return nil, fmt.Errorf("%w: cannot accept ride in state %s", apperrors.ErrInvalidState, r.Status)
	}
	now := time.Now()
	r.DriverID = driverID
	r.Passcode = newPasscode()
	r.Status = models.StatusAccepted
	r.AcceptedAt = &now
	r.UpdatedAt = now
	if err := s.store.UpdateRide(ctx, r, models.StatusRequested); err != nil {
		return nil, err
	}
	if s.presence != nil {
		s.presence.SetAvailable(driverID, false)
	}
	observability.RideTransitionsTotal.WithLabelValues("accept", "ok").Inc()
	s.logger.Info("ride accepted", "ride_id", r.ID, "driver_id", driverID)
	return r, nil
}

// Start transitions accepted → started once the driver proves pairing with
// the passcode. The passcode is single-use and cleared on success, so a
// replayed start lands on the state check, not the credential check.
func (s *Service) Start(ctx context.Context, rideID, driverID, passcode string) (*models.Ride, error) {
	l := s.locks.get(rideID)
	l.Lock()
	defer l.Unlock()

	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusAccepted {
		observability.RideTransitionsTotal.WithLabelValues("start", "rejected").Inc()
		return nil, fmt.Errorf("%w: cannot start ride in state %s", apperrors.ErrInvalidState, r.Status)
	}
	if r.DriverID != driverID {
		observability.RideTransitionsTotal.WithLabelValues("start", "rejected").Inc()
		return nil, fmt.Errorf("%w: ride %s", apperrors.ErrUnauthorizedDriver, rideID)
	}
	if passcode == "" || passcode != r.Passcode {
		observability.RideTransitionsTotal.WithLabelValues("start", "rejected").Inc()
		return nil, fmt.Errorf("%w: ride %s", apperrors.ErrInvalidPasscode, rideID)
	}
	now := time.Now()
	r.Passcode = ""
	r.Status = models.StatusStarted
	r.StartedAt = &now
	r.UpdatedAt = now
	if err := s.store.UpdateRide(ctx, r, models.StatusAccepted); err != nil {
		return nil, err
	}
	observability.RideTransitionsTotal.WithLabelValues("start", "ok").Inc()
	s.logger.Info("ride started", "ride_id", r.ID, "driver_id", driverID)
	return r, nil
}

// End transitions started → completed and finalizes the fare. Fare lookup is
// best effort: a routing failure keeps the ride completable with whatever
// estimate is already on the record.
func (s *Service) End(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	l := s.locks.get(rideID)
	l.Lock()
	defer l.Unlock()

	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusStarted {
		observability.RideTransitionsTotal.WithLabelValues("end", "rejected").Inc()
		return nil, fmt.Errorf("%w: cannot end ride in state %s", apperrors.ErrInvalidState, r.Status)
	}
	if r.DriverID != driverID {
		observability.RideTransitionsTotal.WithLabelValues("end", "rejected").Inc()
		return nil, fmt.Errorf("%w: ride %s", apperrors.ErrUnauthorizedDriver, rideID)
	}
	if s.fares != nil {
		if f, err := s.fares.Quote(ctx, r.Pickup, r.Destination); err == nil {
			r.Fare = f.ForClass(r.VehicleClass)
		} else {
			s.logger.Warn("fare finalization failed", "ride_id", r.ID, "error", err)
		}
	}
	now := time.Now()
	r.Status = models.StatusCompleted
	r.CompletedAt = &now
	r.UpdatedAt = now
	if err := s.store.UpdateRide(ctx, r, models.StatusStarted); err != nil {
		return nil, err
	}
	if s.presence != nil {
		s.presence.SetAvailable(driverID, true)
	}
	observability.RideTransitionsTotal.WithLabelValues("end", "ok").Inc()
	s.logger.Info("ride completed", "ride_id", r.ID, "driver_id", driverID, "fare", r.Fare)
	return r, nil
}

// Cancel is reachable from requested or accepted only. An assigned driver
// returns to the matching pool.
func (s *Service) Cancel(ctx context.Context, rideID string) (*models.Ride, error) {
	l := s.locks.get(rideID)
	l.Lock()
	defer l.Unlock()

	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusRequested && r.Status != models.StatusAccepted {
		observability.RideTransitionsTotal.WithLabelValues("cancel", "rejected").Inc()
		return nil, fmt.Errorf("%w: cannot cancel ride in state %s", apperrors.ErrInvalidState, r.Status)
	}
	driverID := r.DriverID
	from := r.Status
	now := time.Now()
	r.Passcode = ""
	r.Status = models.StatusCancelled
	r.UpdatedAt = now
	if err := s.store.UpdateRide(ctx, r, from); err != nil {
		return nil, err
	}
	if driverID != "" && s.presence != nil {
		s.presence.SetAvailable(driverID, true)
	}
	observability.RideTransitionsTotal.WithLabelValues("cancel", "ok").Inc()
	s.logger.Info("ride cancelled", "ride_id", r.ID)
	return r, nil
}

// Get returns the current ride record.
func (s *Service) Get(ctx context.Context, rideID string) (*models.Ride, error) {
	return s.store.GetRide(ctx, rideID)
}

// Quote delegates to the fare collaborator; it is stateless.
func (s *Service) Quote(ctx context.Context, pickup, destination string) (models.Fare, error) {
	return s.fares.Quote(ctx, pickup, destination)
}

// NewID returns a random 16-hex-char identifier.
func NewID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

const passcodeDigits = 6

// newPasscode mints a fixed-length numeric code. Fresh per ride, not unique
// across rides; verification is scoped to one ride id.
func newPasscode() string {
	max := big.NewInt(1)
	for i := 0; i < passcodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failure is unrecoverable for codes; fall back to zero
		// padding rather than a short code.
		n = big.NewInt(0)
	}
	return fmt.Sprintf("%0*d", passcodeDigits, n)
}
