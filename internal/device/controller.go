// File: internal/device/controller.go
// Description: The device controller owns the environment handle and mediates
// every UI and file operation on it. It is the only component permitted to
// hold or swap the handle, which is what makes atomic reconnection safe.

package device

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/droidbench-cli/internal/config"
)

// ConnectFunc builds a fresh environment handle chain: process-level device
// connection plus capability wrapper installation. The controller calls it
// once at startup and once per reconnection.
type ConnectFunc func() (EnvironmentHandle, error)

// Controller owns exactly one EnvironmentHandle at a time. All access to the
// device flows through its operations; a mutex serializes reconnection
// against concurrent element and forest queries so the old handle is never
// used while a swap is in flight.
type Controller struct {
	mu      sync.Mutex
	handle  EnvironmentHandle
	method  config.A11yMethod
	fetcher *Fetcher
	connect ConnectFunc
	logger  *zap.Logger
}

// NewController wires a controller around an already-constructed handle.
func NewController(
	handle EnvironmentHandle,
	method config.A11yMethod,
	fetcher *Fetcher,
	connect ConnectFunc,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		handle:  handle,
		method:  method,
		fetcher: fetcher,
		connect: connect,
		logger:  logger.Named("controller"),
	}
}

// Connect builds the full environment for the configured device: ADB root
// handle (connecting first in Remote mode) plus the accessibility forwarder
// wrapper when that method is selected.
func Connect(devCfg config.DeviceConfig, snapCfg config.SnapshotConfig, logger *zap.Logger) (*Controller, error) {
	connect := func() (EnvironmentHandle, error) {
		root := NewADBEnvironment(devCfg.ADBPath, devCfg.DeviceName(), logger)
		if devCfg.ConnectionType == config.ConnectionRemote {
			if err := root.Connect(); err != nil {
				return nil, err
			}
		}
		if devCfg.A11yMethod != config.A11yMethodForwarder {
			return root, nil
		}
		wrapper, err := WrapForwarder(root, ForwarderOptions{
			RemoteMode: devCfg.ConnectionType == config.ConnectionRemote,
		}, logger)
		if err != nil {
			return nil, err
		}
		return wrapper, nil
	}

	handle, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connect to device environment: %w", err)
	}
	fetcher := NewFetcher(snapCfg.MaxRetries, snapCfg.RetryDelay, logger)
	return NewController(handle, devCfg.A11yMethod, fetcher, connect, logger), nil
}

// Handle returns the currently owned handle. Exposed for evaluator plugins
// that need raw shell access; they must not retain it across calls.
func (c *Controller) Handle() EnvironmentHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Forest returns the most recent accessibility forest from the device.
//
// When the fetch exhausts its retries on the current handle, the controller
// reconnects (full teardown and reconstruction of the environment handle and
// its capability wrapper) and retries the fetch exactly once more. A second
// failure propagates; reconnection is attempted at most once per call.
func (c *Controller) Forest() (*Forest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	forest, err := c.fetcher.Fetch(c.handle)
	if err == nil {
		return forest, nil
	}
	if !errors.Is(err, ErrSnapshotUnavailable) {
		return nil, err
	}

	c.logger.Warn("Could not get accessibility forest. Reconnecting to the device, " +
		"rebuilding the environment, and restarting forwarding.")
	if rerr := c.reconnectLocked(); rerr != nil {
		return nil, rerr
	}
	return c.fetcher.Fetch(c.handle)
}

// UIElements returns the most recent UI elements from the device, extracted
// according to the configured accessibility method.
func (c *Controller) UIElements() ([]UIElement, error) {
	switch c.method {
	case config.A11yMethodForwarder:
		forest, err := c.Forest()
		if err != nil {
			return nil, err
		}
		return FlattenForest(forest, true), nil
	case config.A11yMethodDump:
		c.mu.Lock()
		defer c.mu.Unlock()
		sh, ok := AsShell(c.handle)
		if !ok {
			return nil, fmt.Errorf("environment cannot execute shell commands")
		}
		dump, err := UIAutomatorDump(sh)
		if err != nil {
			return nil, err
		}
		return ParseUIAutomatorDump(dump)
	default:
		return nil, nil
	}
}

// ScreenSize returns the physical screen size of the device as (width, height).
func (c *Controller) ScreenSize() (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sh, ok := AsShell(c.handle)
	if !ok {
		return 0, 0, fmt.Errorf("environment cannot execute shell commands")
	}
	return ScreenSize(sh)
}

// LogicalScreenSize returns the logical screen size, which differs from the
// physical one when orientation or resolution has been changed.
func (c *Controller) LogicalScreenSize() (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sh, ok := AsShell(c.handle)
	if !ok {
		return 0, 0, fmt.Errorf("environment cannot execute shell commands")
	}
	return LogicalScreenSize(sh)
}

// reconnectLocked rebuilds the environment and swaps the owned handle. The
// old handle is torn down only after the new one is fully constructed, and is
// never visible to callers mid-swap (the controller mutex is held).
func (c *Controller) reconnectLocked() error {
	newHandle, err := c.connect()
	if err != nil {
		c.logger.Error("Reconnection failed.", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrControllerUnavailable, err)
	}
	c.teardown(c.handle)
	c.handle = newHandle
	c.logger.Info("Environment handle reconnected.")
	return nil
}

// teardown closes every closable link of the old chain. The old handle is
// discarded; no two handles are live to the same physical device.
func (c *Controller) teardown(h EnvironmentHandle) {
	for link := h; link != nil; link = link.Wrapped() {
		if closer, ok := link.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.logger.Debug("Error closing environment link.", zap.Error(err))
			}
		}
	}
}

// Close tears down the owned environment handle.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown(c.handle)
	return nil
}
