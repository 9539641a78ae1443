// Package handlers defines the error codes of the local API and the mapping
// from store errors onto them.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// rejected and upstream_unavailable describe what the remote storefront did.
// Clients branch on the code, never on the message.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/services"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Remote outcomes:
	ErrCodeRejected    = "rejected"
	ErrCodeUnavailable = "upstream_unavailable"
)

// statusFor classifies err. Unknown errors are internal.
func statusFor(err error) (int, string) {
	var rejected *transport.RejectedError
	switch {
	case errors.Is(err, domain.ErrInvalid),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidProduct),
		errors.Is(err, services.ErrEmptyOrder):
		return http.StatusBadRequest, ErrCodeBadRequest

	case errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrAddressNotFound),
		errors.Is(err, transport.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound

	case errors.Is(err, services.ErrNotCancellable),
		errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, ErrCodeConflict

	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrNotAuthenticated),
		errors.Is(err, transport.ErrAuthExpired):
		return http.StatusUnauthorized, ErrCodeUnauthorized

	case errors.As(err, &rejected):
		if rejected.Status >= 400 && rejected.Status < 500 {
			return rejected.Status, ErrCodeRejected
		}
		return http.StatusUnprocessableEntity, ErrCodeRejected

	case errors.Is(err, transport.ErrTransport):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// failErr writes the envelope for a store error. Messages of internal errors
// are not exposed.
func failErr(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	var rejected *transport.RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		msg = rejected.Message
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	fail(c, status, code, msg)
}
