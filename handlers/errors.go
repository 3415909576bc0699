package handlers

import (
	"errors"
	"net/http"

	"github.com/LovationAdmin/gst-api/services"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrInvalidRate),
		errors.Is(err, services.ErrEmptyDescription),
		errors.Is(err, services.ErrNotPDF):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoRates):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
