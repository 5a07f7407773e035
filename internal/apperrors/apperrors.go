// Package apperrors defines the error taxonomy shared across the ride
// lifecycle, dispatch, and transport layers. Callers classify failures with
// errors.Is against these sentinels and map them to a status with HTTPStatus.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid ride state")
	ErrUnauthorizedDriver = errors.New("driver not assigned to this ride")
	ErrInvalidPasscode    = errors.New("passcode mismatch")
	ErrGeocoding          = errors.New("unable to geocode address")
	ErrNoRoute            = errors.New("no route between coordinates")
	ErrStore              = errors.New("store failure")
)

// HTTPStatus maps a taxonomy error to the transport status the API layer
// should return. Unknown errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorizedDriver):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidPasscode):
		return http.StatusUnauthorized
	case errors.Is(err, ErrGeocoding), errors.Is(err, ErrNoRoute):
		return http.StatusBadGateway
	case errors.Is(err, ErrStore):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
