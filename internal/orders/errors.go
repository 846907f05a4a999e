package orders

import "errors"

var (
	// ErrNotFound covers both absent orders and orders owned by someone else.
	ErrNotFound = errors.New("order not found")
	// ErrOrderNotActive is returned when mutating a Completed, Cancelled or Expired order.
	ErrOrderNotActive = errors.New("order is not active")
	// ErrStatusMismatch is returned by the store when a conditional write fails.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrUpstreamUnavailable wraps store and dependent-service failures.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidCursor is returned for malformed or foreign pagination tokens.
	ErrInvalidCursor = errors.New("invalid pagination token")

	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrAssetNotFound     = errors.New("asset not found")
)

// ValidationError reports a broken business rule. Reason is safe to show to clients.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error { return &ValidationError{Reason: reason} }
