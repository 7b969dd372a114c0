// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrAuthRequired indicates a missing or invalid session.
	ErrAuthRequired = errors.New("authentication required")

	// ErrNoCredential indicates no stored Strava credential for the owner.
	// Events for such owners are dropped without retry.
	ErrNoCredential = errors.New("no credential")

	// ErrRefresh indicates the upstream token-refresh call failed.
	// The current event is dropped; no retry queue exists.
	ErrRefresh = errors.New("token refresh failed")

	// ErrDecode indicates malformed geometry input (bad polyline or WKT).
	ErrDecode = errors.New("geometry decode failed")

	// ErrEmptyGeometry indicates a region or path with no points.
	ErrEmptyGeometry = errors.New("empty geometry")

	// ErrCaptioning indicates the map render or captioning call failed.
	ErrCaptioning = errors.New("captioning failed")

	// ErrUpstream indicates a non-2xx or error payload from Strava.
	ErrUpstream = errors.New("upstream error")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation
	// (e.g., a region id reused by the same owner).
	ErrAlreadyExists = errors.New("already exists")
)
