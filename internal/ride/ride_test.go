package ride

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/storage"
)

type fakeQuoter struct {
	fare models.Fare
	err  error
}

func (f *fakeQuoter) Quote(ctx context.Context, pickup, destination string) (models.Fare, error) {
	return f.fare, f.err
}

type fakePresence struct {
	mu    sync.Mutex
	state map[string]bool
}

func (f *fakePresence) SetAvailable(driverID string, available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		f.state = make(map[string]bool)
	}
	f.state[driverID] = available
}

func newTestService(q *fakeQuoter) (*Service, *storage.MemoryStore, *fakePresence) {
	store := storage.NewMemoryStore()
	presence := &fakePresence{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, q, presence, logger), store, presence
}

func createRequested(t *testing.T, s *Service) *models.Ride {
	t.Helper()
	r, err := s.Create(context.Background(), CreateInput{
		RiderID:      "rider1",
		Pickup:       "New Market, Bhopal",
		Destination:  "DB City Mall, Bhopal",
		VehicleClass: models.VehicleCar,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func TestCreateStartsRequestedWithoutDriverOrPasscode(t *testing.T) {
	s, _, _ := newTestService(&fakeQuoter{})
	r := createRequested(t, s)
	if r.Status != models.StatusRequested {
		t.Fatalf("expected requested, got %s", r.Status)
	}
	if r.DriverID != "" || r.Passcode != "" {
		t.Fatalf("new ride must have no driver and no passcode: %+v", r)
	}
}

func TestCreateValidation(t *testing.T) {
	s, _, _ := newTestService(&fakeQuoter{})
	cases := []CreateInput{
		{Pickup: "a", Destination: "b", VehicleClass: models.VehicleCar},
		{RiderID: "r", Destination: "b", VehicleClass: models.VehicleCar},
		{RiderID: "r", Pickup: "a", VehicleClass: models.VehicleCar},
		{RiderID: "r", Pickup: "a", Destination: "b", VehicleClass: "tram"},
	}
	for i, in := range cases {
		if _, err := s.Create(context.Background(), in); !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestAcceptAssignsDriverAndPasscode(t *testing.T) {
	s, store, presence := newTestService(&fakeQuoter{})
	r := createRequested(t, s)

	got, err := s.Accept(context.Background(), r.ID, "drv1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != models.StatusAccepted || got.DriverID != "drv1" {
		t.Fatalf("unexpected ride after accept: %+v", got)
	}
	if len(got.Passcode) != 6 {
		t.Fatalf("expected 6-digit passcode, got %q", got.Passcode)
	}
	if v := got.View(); v.Passcode != "" {
		t.Fatalf("view must strip passcode")
	}
	stored, _ := store.GetRide(context.Background(), r.ID)
	if stored.Passcode != got.Passcode {
		t.Fatalf("stored passcode mismatch")
	}
	if got.AcceptedAt == nil || !stored.UpdatedAt.Equal(*got.AcceptedAt) {
		t.Fatalf("store must persist the transition timestamp: updated=%v accepted=%v", stored.UpdatedAt, got.AcceptedAt)
	}
	if avail, ok := presence.state["drv1"]; !ok || avail {
		t.Fatalf("accepting driver should leave the matching pool")
	}
}

func TestAcceptRejectsNonRequestedAndLeavesRecordUnchanged(t *testing.T) {
	s, store, _ := newTestService(&fakeQuoter{})
	r := createRequested(t, s)
	if _, err := s.Accept(context.Background(), r.ID, "drv1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	before, _ := store.GetRide(context.Background(), r.ID)

	if _, err := s.Accept(context.Background(), r.ID, "drv2"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	after, _ := store.GetRide(context.Background(), r.ID)
	if *after != *before {
		t.Fatalf("losing accept mutated the record: %+v vs %+v", after, before)
	}
}

func TestAcceptUnknownRide(t *testing.T) {
	s, _, _ := newTestService(&fakeQuoter{})
	if _, err := s.Accept(context.Background(), "missing", "drv1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentAcceptExactlyOneWinner(t *testing.T) {
	s, store, _ := newTestService(&fakeQuoter{})
	r := createRequested(t, s)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	winners := make(chan string, attempts)

	for i := 0; i < attempts; i++ {
		driverID := fmt.Sprintf("drv%d", i)
		wg.Add(1)
		go func(did string) {
			defer wg.Done()
			if _, err := s.Accept(context.Background(), r.ID, did); err != nil {
				errs <- err
				return
			}
			winners <- did
		}(driverID)
	}
	wg.Wait()
	close(errs)
	close(winners)

	var won []string
	for w := range winners {
		won = append(won, w)
	}
	if len(won) != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", len(won))
	}
	for err := range errs {
		if !errors.Is(err, apperrors.ErrInvalidState) {
			t.Fatalf("loser saw unexpected error: %v", err)
		}
	}
	final, _ := store.GetRide(context.Background(), r.ID)
	if final.DriverID != won[0] {
		t.Fatalf("final driver %q != winner %q", final.DriverID, won[0])
	}
}

func TestStartChecksDriverAndPasscode(t *testing.T) {
	s, store, _ := newTestService(&fakeQuoter{})
	r := createRequested(t, s)
	accepted, err := s.Accept(context.Background(), r.ID, "drv1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := s.Start(context.Background(), r.ID, "other", accepted.Passcode); !errors.Is(err, apperrors.ErrUnauthorizedDriver) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if _, err := s.Start(context.Background(), r.ID, "drv1", "000000x"); !errors.Is(err, apperrors.ErrInvalidPasscode) {
		t.Fatalf("expected passcode error, got %v", err)
	}
	cur, _ := store.GetRide(context.Background(), r.ID)
	if cur.Status != models.StatusAccepted {
		t.Fatalf("failed start must leave ride accepted, got %s", cur.Status)
	}

	started, err := s.Start(context.Background(), r.ID, "drv1", accepted.Passcode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.StatusStarted || started.Passcode != "" {
		t.Fatalf("passcode must be consumed on start: %+v", started)
	}
}

func TestStartIsSingleUse(t *testing.T) {
	s, _, _ := newTestService(&fakeQuoter{})
	r := createRequested(t, s)
	accepted, _ := s.Accept(context.Background(), r.ID, "drv1")
	if _, err := s.Start(context.Background(), r.ID, "drv1", accepted.Passcode); err != nil {
		t.Fatalf("start: %v", err)
	}
	// replay with the consumed code lands on the state check
	if _, err := s.Start(context.Background(), r.ID, "drv1", accepted.Passcode); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state on replay, got %v", err)
	}
}

func TestStartBeforeAccept(t *testing.T) {
	s, _, _ := newTestService(&fakeQuoter{})
	r := createRequested(t, s)
	if _, err := s.Start(context.Background(), r.ID, "drv1", "123456"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestEndAuthorizationAndFare(t *testing.T) {
	q := &fakeQuoter{fare: models.Fare{Auto: 80, Car: 120, Moto: 60}}
	s, store, presence := newTestService(q)
	r := createRequested(t, s)
	accepted, _ := s.Accept(context.Background(), r.ID, "drv1")
	if _, err := s.Start(context.Background(), r.ID, "drv1", accepted.Passcode); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.End(context.Background(), r.ID, "other"); !errors.Is(err, apperrors.ErrUnauthorizedDriver) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	cur, _ := store.GetRide(context.Background(), r.ID)
	if cur.Status != models.StatusStarted {
		t.Fatalf("wrong-driver end must leave ride started, got %s", cur.Status)
	}

	done, err := s.End(context.Background(), r.ID, "drv1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Fare != 120 {
		t.Fatalf("expected car fare 120, got %v", done.Fare)
	}
	if avail := presence.state["drv1"]; !avail {
		t.Fatalf("finished driver should re-enter the matching pool")
	}
}

func TestEndSurvivesFareFailure(t *testing.T) {
	q := &fakeQuoter{err: fmt.Errorf("%w: osrm down", apperrors.ErrNoRoute)}
	s, _, _ := newTestService(q)
	r := createRequested(t, s)
	accepted, _ := s.Accept(context.Background(), r.ID, "drv1")
	_, _ = s.Start(context.Background(), r.ID, "drv1", accepted.Passcode)

	done, err := s.End(context.Background(), r.ID, "drv1")
	if err != nil {
		t.Fatalf("end must not fail on fare lookup: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
}

func TestCancelPaths(t *testing.T) {
	s, _, presence := newTestService(&fakeQuoter{})
	r := createRequested(t, s)
	if _, err := s.Cancel(context.Background(), r.ID); err != nil {
		t.Fatalf("cancel requested: %v", err)
	}

	r2 := createRequested(t, s)
	_, _ = s.Accept(context.Background(), r2.ID, "drv1")
	cancelled, err := s.Cancel(context.Background(), r2.ID)
	if err != nil {
		t.Fatalf("cancel accepted: %v", err)
	}
	if cancelled.Passcode != "" {
		t.Fatalf("cancel must clear passcode")
	}
	if avail := presence.state["drv1"]; !avail {
		t.Fatalf("cancel must release the driver")
	}
	if _, err := s.Cancel(context.Background(), r2.ID); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state on double cancel, got %v", err)
	}
}
