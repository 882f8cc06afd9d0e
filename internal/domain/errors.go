package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports an unresolvable catalog, item or record.
	ErrNotFound = errors.New("not found")
	// ErrNoItems reports a catalog (or requested range) without items.
	ErrNoItems = errors.New("no items")
	// ErrExtractionFailed covers extraction service errors, timeouts and malformed responses.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrSizeExceeded reports a payload larger than the configured maximum.
	ErrSizeExceeded = errors.New("payload size exceeded")
	// ErrAlreadyRelayed reports a dedup hit.
	ErrAlreadyRelayed = errors.New("already relayed")
	// ErrRelayFailed reports that the messaging channel did not accept the payload.
	ErrRelayFailed = errors.New("relay failed")
	// ErrDuplicateBatch reports a second batch for a session that already has one.
	ErrDuplicateBatch = errors.New("batch already active")
	// ErrStore wraps dedup store failures.
	ErrStore = errors.New("store failure")
)

// Reason maps an error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrAlreadyRelayed):
		return "already_relayed"
	case errors.Is(err, ErrSizeExceeded):
		return "size_exceeded"
	case errors.Is(err, ErrExtractionFailed):
		return "extraction_failed"
	case errors.Is(err, ErrRelayFailed):
		return "relay_failed"
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoItems):
		return "no_items"
	case errors.Is(err, ErrDuplicateBatch):
		return "duplicate_batch"
	default:
		return "unknown"
	}
}

// OutcomeFor converts a per-item error into the outcome recorded for it.
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrAlreadyRelayed), errors.Is(err, ErrSizeExceeded):
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}
