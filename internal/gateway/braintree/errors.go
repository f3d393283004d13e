package braintree

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	bt "github.com/braintree-go/braintree-go"
	"github.com/sony/gobreaker"

	"payments-reconciler/internal/domain"
)

var (
	ErrAuthentication     = errors.New("braintree: authentication failed")
	ErrAuthorization      = errors.New("braintree: not authorized")
	ErrNotFound           = errors.New("braintree: resource not found")
	ErrUpgradeRequired    = errors.New("braintree: api version no longer supported")
	ErrValidation         = errors.New("braintree: request rejected")
	ErrServer             = errors.New("braintree: server error")
	ErrDownForMaintenance = errors.New("braintree: down for maintenance")
	ErrUnexpected         = errors.New("braintree: unexpected response")
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Message    string
	kind       error

	// transaction is set when a 422 carries the declined transaction.
	transaction *bt.Transaction
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (status %d): %s", e.kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (status %d)", e.kind, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func newAPIError(status int, message string) *APIError {
	var kind error
	switch status {
	case http.StatusUnauthorized:
		kind = ErrAuthentication
	case http.StatusForbidden:
		kind = ErrAuthorization
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusUpgradeRequired:
		kind = ErrUpgradeRequired
	case http.StatusUnprocessableEntity:
		kind = ErrValidation
	case http.StatusInternalServerError:
		kind = ErrServer
	case http.StatusServiceUnavailable:
		kind = ErrDownForMaintenance
	default:
		kind = ErrUnexpected
	}
	return &APIError{StatusCode: status, Message: message, kind: kind}
}

// classify turns an SDK error into one of the sentinels above. status is the
// HTTP status of the response, or 0 when none arrived.
func classify(err error, status int) error {
	if err == nil {
		return nil
	}

	var sdkErr *bt.BraintreeError
	if errors.As(err, &sdkErr) {
		apiErr := newAPIError(http.StatusUnprocessableEntity, sdkErr.ErrorMessage)
		apiErr.transaction = sdkErr.Transaction
		return apiErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if status == 0 {
		return fmt.Errorf("%w: %v", ErrServer, err)
	}
	if status < http.StatusMultipleChoices {
		return &APIError{StatusCode: status, Message: err.Error(), kind: ErrUnexpected}
	}
	return newAPIError(status, "")
}

// unavailable marks errors where the breaker refused to send the request.
func unavailable(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	return err
}

// countsAgainstBreaker is false for answers that say nothing about the
// gateway's health.
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	return !(errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled))
}
