package domain

import "errors"

// Error kinds for the ingestion and registration failure taxonomy. Callers
// classify with errors.Is; per-station failures carry these kinds into the
// audit stream instead of unwinding a batch run.
var (
	// ErrTransient marks provider failures worth retrying: timeouts,
	// connection errors, 5xx and 429 responses.
	ErrTransient = errors.New("transient provider error")

	// ErrMalformed marks provider responses with an unexpected shape. The
	// offending record or station is dropped, never fatal to a run.
	ErrMalformed = errors.New("malformed provider response")

	// ErrUnknownStation is returned when a candidate station code does not
	// exist in the provider's catalog.
	ErrUnknownStation = errors.New("station not found in provider catalog")

	// ErrUnauthorized is returned when registration is attempted by a
	// principal without administrative capability.
	ErrUnauthorized = errors.New("administrative capability required")

	// ErrStoreWrite marks a rejected store batch write after retries.
	ErrStoreWrite = errors.New("store write rejected")
)
