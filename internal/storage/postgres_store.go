package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/apperrors"
	"github.com/example/ride-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO rides(id, rider_id, driver_id, pickup, destination, vehicle_class, status, passcode, fare, created_at, accepted_at, started_at, completed_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		r.ID, r.RiderID, nullStr(r.DriverID), r.Pickup, r.Destination, string(r.VehicleClass), string(r.Status), nullStr(r.Passcode), r.Fare, r.CreatedAt, r.AcceptedAt, r.StartedAt, r.CompletedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert ride: %v", apperrors.ErrStore, err)
	}
	return nil
}

// UpdateRide is an optimistic write: the status predicate makes concurrent
// transitions from several API processes serialize in Postgres, with the
// losers reporting ErrInvalidState.
func (p *PostgresStore) UpdateRide(ctx context.Context, r *models.Ride, from models.RideStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE rides SET driver_id=$1, status=$2, passcode=$3, fare=$4, accepted_at=$5, started_at=$6, completed_at=$7, updated_at=$8 WHERE id=$9 AND status=$10`,
		nullStr(r.DriverID), string(r.Status), nullStr(r.Passcode), r.Fare, r.AcceptedAt, r.StartedAt, r.CompletedAt, r.UpdatedAt, r.ID, string(from))
	if err != nil {
		return fmt.Errorf("%w: update ride: %v", apperrors.ErrStore, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: ride %s is no longer %s", apperrors.ErrInvalidState, r.ID, from)
	}
	return nil
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, rider_id, driver_id, pickup, destination, vehicle_class, status, passcode, fare, created_at, accepted_at, started_at, completed_at, updated_at FROM rides WHERE id=$1`, id)
	var (
		r               models.Ride
		driverID, code  sql.NullString
		vehicle, status string
	)
	err := row.Scan(&r.ID, &r.RiderID, &driverID, &r.Pickup, &r.Destination, &vehicle, &status, &code, &r.Fare, &r.CreatedAt, &r.AcceptedAt, &r.StartedAt, &r.CompletedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ride %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select ride: %v", apperrors.ErrStore, err)
	}
	r.DriverID = driverID.String
	r.Passcode = code.String
	r.VehicleClass = models.VehicleClass(vehicle)
	r.Status = models.RideStatus(status)
	return &r, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
