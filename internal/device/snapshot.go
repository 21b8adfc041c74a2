// File: internal/device/snapshot.go
// Description: Retrieves the most recent accessibility forest from the device
// under transient failure. The accessibility service is asynchronous relative
// to the request; the bounded retry+sleep loop absorbs that latency without
// the caller needing to know the service's internal timing.

package device

import (
	"time"

	"go.uber.org/zap"
)

const (
	// airplaneModeProbes bounds the airplane-mode pre-check, which itself
	// runs over a flaky shell transport.
	airplaneModeProbes = 3
	// networkingSettleDelay is how long to wait after re-enabling networking
	// before trusting the snapshot transport again.
	networkingSettleDelay = time.Second
)

// snapshotCategory is the extras category under which UI forests are buffered.
const snapshotCategory = "accessibility_tree"

// Fetcher pulls accessibility forests through the capability wrapper with
// bounded retry.
type Fetcher struct {
	maxRetries int
	retryDelay time.Duration
	sleep      func(time.Duration)
	logger     *zap.Logger
}

// NewFetcher returns a Fetcher with the given retry bounds. maxRetries is the
// total number of pull attempts per Fetch call, not the number of re-tries.
func NewFetcher(maxRetries int, retryDelay time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		sleep:      time.Sleep,
		logger:     logger.Named("snapshot"),
	}
}

// Fetch returns the most recently buffered accessibility forest from the
// device behind handle.
//
// A handle chain without the accessibility capability fails immediately with
// ErrMisconfiguredEnvironment. Otherwise each attempt first runs the
// airplane-mode pre-check and remediation, then pulls buffered snapshots;
// when none are available yet the fetcher sleeps retryDelay and tries again,
// up to maxRetries attempts, after which it fails with ErrSnapshotUnavailable.
func (f *Fetcher) Fetch(handle EnvironmentHandle) (*Forest, error) {
	provider, ok := accessibilityProvider(handle)
	if !ok {
		return nil, ErrMisconfiguredEnvironment
	}

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		f.remediateNetworking(handle, provider)

		forest, err := latestSnapshot(provider)
		if err == nil {
			return forest, nil
		}
		f.logger.Warn("Could not get accessibility forest, retrying.",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", f.maxRetries),
			zap.Error(err))
		f.sleep(f.retryDelay)
	}

	return nil, ErrSnapshotUnavailable
}

// remediateNetworking checks whether airplane mode silently broke the
// snapshot transport and, if so, actively re-enables networking. The check
// runs once per fetch attempt, not once per Fetch call.
func (f *Fetcher) remediateNetworking(handle EnvironmentHandle, provider AccessibilityProvider) {
	sh, ok := AsShell(handle)
	if !ok {
		return
	}
	on, err := CheckAirplaneMode(sh, airplaneModeProbes)
	if err != nil {
		f.logger.Debug("Airplane mode probe failed.", zap.Error(err))
		return
	}
	if !on {
		return
	}
	f.logger.Warn("Airplane mode is on -- cannot retrieve forest. Turning it off...")
	f.logger.Info("Enabling networking...")
	if err := provider.AttemptEnableNetworking(); err != nil {
		f.logger.Warn("Failed to enable networking.", zap.Error(err))
	}
	f.sleep(networkingSettleDelay)
}

// latestSnapshot drains the provider's buffer and returns the most recent
// forest, or ErrSnapshotNotReady when nothing has arrived yet.
func latestSnapshot(provider AccessibilityProvider) (*Forest, error) {
	extras := provider.AccumulateSnapshots()
	forests := extras[snapshotCategory]
	if len(forests) == 0 {
		return nil, ErrSnapshotNotReady
	}
	return forests[len(forests)-1], nil
}
