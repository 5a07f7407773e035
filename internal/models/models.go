package models

import "time"

type Coord struct {
    Lat float64 `json:"lat"`
    Lng float64 `json:"lng"`
}

// PartyKind distinguishes the two sides of a ride on the realtime channel.
type PartyKind string

const (
    KindRider  PartyKind = "rider"
    KindDriver PartyKind = "driver"
)

type VehicleClass string

const (
    VehicleAuto VehicleClass = "auto"
    VehicleCar  VehicleClass = "car"
    VehicleMoto VehicleClass = "moto"
)

func ValidVehicleClass(v VehicleClass) bool {
    switch v {
    case VehicleAuto, VehicleCar, VehicleMoto:
        return true
    }
    return false
}

type RideStatus string

const (
    StatusRequested RideStatus = "requested"
    StatusAccepted  RideStatus = "accepted"
    StatusStarted   RideStatus = "started"
    StatusCompleted RideStatus = "completed"
    StatusCancelled RideStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RideStatus) Terminal() bool {
    return s == StatusCompleted || s == StatusCancelled
}

type Ride struct {
    ID           string       `json:"id"`
    RiderID      string       `json:"rider_id"`
    DriverID     string       `json:"driver_id,omitempty"`
    Pickup       string       `json:"pickup"`
    Destination  string       `json:"destination"`
    VehicleClass VehicleClass `json:"vehicle_class"`
    Status       RideStatus   `json:"status"`
    Passcode     string       `json:"passcode,omitempty"`
    Fare         float64      `json:"fare,omitempty"`
    CreatedAt    time.Time    `json:"created_at"`
    AcceptedAt   *time.Time   `json:"accepted_at,omitempty"`
    StartedAt    *time.Time   `json:"started_at,omitempty"`
    CompletedAt  *time.Time   `json:"completed_at,omitempty"`
    UpdatedAt    time.Time    `json:"updated_at"`
}

// View returns the outward representation of the ride with the pickup
// passcode stripped. Only the rider sees the full record; everything
// broadcast to drivers goes through here.
func (r *Ride) View() Ride {
    v := *r
    v.Passcode = ""
    return v
}

// DriverPresence is a driver's last-known location and matchability.
type DriverPresence struct {
    DriverID  string    `json:"driver_id"`
    Loc       Coord     `json:"loc"`
    Available bool      `json:"available"`
    Updated   time.Time `json:"updated"`
}

// Fare holds per-class estimates for one pickup/destination pair.
type Fare struct {
    Auto            float64 `json:"auto"`
    Car             float64 `json:"car"`
    Moto            float64 `json:"moto"`
    DistanceMeters  float64 `json:"distance_meters"`
    DurationSeconds float64 `json:"duration_seconds"`
}

// ForClass picks the estimate matching the requested vehicle class.
func (f Fare) ForClass(v VehicleClass) float64 {
    switch v {
    case VehicleAuto:
        return f.Auto
    case VehicleMoto:
        return f.Moto
    default:
        return f.Car
    }
}

// DriverLocationUpdate is the wire shape published to Kafka by the API
// process and consumed into the Redis geo index.
type DriverLocationUpdate struct {
    DriverID string    `json:"driver_id"`
    Loc      Coord     `json:"loc"`
    At       time.Time `json:"at"`
}
