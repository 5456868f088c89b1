package server

import (
	"errors"
	"net/http"

	"github.com/veritasweb/payments/internal/checkout"
	"github.com/veritasweb/payments/internal/webhook/domain"
)

// statusForIngestError maps a pipeline rejection to its transport status.
// Accepted outcomes (including duplicates and business failures) never
// reach this function; they respond 2xx so providers stop redelivering.
func statusForIngestError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAdmissionDenied):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrMissingSignatureHeader),
		errors.Is(err, domain.ErrMalformedSignatureHeader),
		errors.Is(err, domain.ErrStaleTimestamp),
		errors.Is(err, domain.ErrSignatureMismatch),
		errors.Is(err, domain.ErrMissingHeader),
		errors.Is(err, domain.ErrVerificationCall):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnknownProvider),
		errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func statusForCheckoutError(err error) int {
	switch {
	case errors.Is(err, checkout.ErrInvalidPlan),
		errors.Is(err, checkout.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, checkout.ErrGatewayFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
