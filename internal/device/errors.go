// File: internal/device/errors.go
package device

import "errors"

var (
	// ErrMisconfiguredEnvironment means the environment handle chain carries
	// no accessibility capability wrapper. This is a caller contract
	// violation, not a transient condition, and is never retried.
	ErrMisconfiguredEnvironment = errors.New("environment has no accessibility capability wrapper")

	// ErrSnapshotNotReady means no snapshot has been buffered yet. The
	// accessibility service delivers snapshots asynchronously relative to
	// the request, so this condition is retryable.
	ErrSnapshotNotReady = errors.New("no accessibility snapshot buffered yet")

	// ErrSnapshotUnavailable means the bounded retry loop exhausted without
	// obtaining a snapshot on the current handle. The controller may recover
	// by reconnecting.
	ErrSnapshotUnavailable = errors.New("could not get accessibility forest")

	// ErrControllerUnavailable means reconnection itself failed. There is no
	// secondary fallback beyond the single reconnect-and-retry; the current
	// task is aborted.
	ErrControllerUnavailable = errors.New("device controller unavailable: reconnection failed")
)
