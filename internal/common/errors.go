// Package common defines shared sentinel errors used across the artfolio
// server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a unique-constraint race on a toggle-kind event.
	// It is resolved internally by a single complementary retry and is not
	// surfaced to callers unless the retry also fails.
	ErrConflict = errors.New("conflict")

	// ErrConcurrentModification is returned when the conflict retry is
	// exhausted. Safe for the caller to retry the whole action.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrCacheUnavailable marks a degraded cache; reads fall back to the
	// ledger and the error is only logged.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")
)
