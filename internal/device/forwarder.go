// File: internal/device/forwarder.go
// Description: The accessibility forwarder capability wrapper. It wraps any
// environment handle, arranges for the on-device forwarder app to stream UI
// forests to a host-side listener, and buffers them until drained.

package device

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// forwarderPackage is the on-device app that mirrors the accessibility
// service's UI forests to the host.
const forwarderPackage = "com.google.androidenv.accessibilityforwarder"

// forwarderService is the accessibility service component to enable.
const forwarderService = forwarderPackage + "/" + forwarderPackage + ".ForwarderService"

// apkInstaller is implemented by root handles that can install packages.
type apkInstaller interface {
	Install(apkPath string) error
}

// portReverser is implemented by root handles that can set up reverse port
// forwarding (needed in remote mode, where the device cannot reach the host
// directly).
type portReverser interface {
	Reverse(devicePort, hostPort int) error
}

// ForwarderOptions configures construction of the capability wrapper.
type ForwarderOptions struct {
	// APKPath points at the forwarder app package on the host. Installation
	// is skipped when empty or when the app is already on the device.
	APKPath string
	// RemoteMode indicates the device is reached over the network and needs
	// `adb reverse` so its stream lands on the host listener.
	RemoteMode bool
	// Port fixes the listener port; 0 picks an ephemeral one.
	Port int
}

// ForwarderWrapper adds CapabilityAccessibility to the wrapped handle. It
// owns a TCP listener on which the device-side forwarder delivers one JSON
// forest per line; arrivals are buffered most-recent-last until drained by
// AccumulateSnapshots.
type ForwarderWrapper struct {
	inner  EnvironmentHandle
	logger *zap.Logger
	json   jsoniter.API

	listener net.Listener
	port     int

	mu       sync.Mutex
	buffered []*Forest
	closed   bool
}

var _ AccessibilityProvider = (*ForwarderWrapper)(nil)

// WrapForwarder installs (if needed) and enables the forwarder app on the
// device behind inner, starts the host-side listener, and returns the
// capability wrapper. The returned wrapper must be closed when the
// environment is torn down.
func WrapForwarder(inner EnvironmentHandle, opts ForwarderOptions, logger *zap.Logger) (*ForwarderWrapper, error) {
	sh, ok := AsShell(inner)
	if !ok {
		return nil, fmt.Errorf("wrapped environment cannot execute shell commands")
	}

	w := &ForwarderWrapper{
		inner:  inner,
		logger: logger.Named("forwarder"),
		json:   jsoniter.ConfigCompatibleWithStandardLibrary,
	}

	if err := w.ensureAppInstalled(sh, opts.APKPath); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("start forwarder listener: %w", err)
	}
	w.listener = listener
	w.port = listener.Addr().(*net.TCPAddr).Port
	go w.acceptLoop()

	if opts.RemoteMode {
		if rev, ok := reverser(inner); ok {
			w.logger.Info("Remote mode: reversing forwarder port onto device.",
				zap.Int("port", w.port))
			if err := rev.Reverse(w.port, w.port); err != nil {
				w.logger.Warn("Failed to set up reverse port forwarding.", zap.Error(err))
			}
		}
	}

	if err := w.enableService(sh); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Wrapped implements EnvironmentHandle.
func (w *ForwarderWrapper) Wrapped() EnvironmentHandle { return w.inner }

// Exposes implements EnvironmentHandle.
func (w *ForwarderWrapper) Exposes(c Capability) bool {
	return c == CapabilityAccessibility
}

// Port returns the host-side listener port.
func (w *ForwarderWrapper) Port() int { return w.port }

// AccumulateSnapshots drains every forest buffered since the last call.
func (w *ForwarderWrapper) AccumulateSnapshots() map[string][]*Forest {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buffered) == 0 {
		return map[string][]*Forest{}
	}
	taken := w.buffered
	w.buffered = nil
	return map[string][]*Forest{snapshotCategory: taken}
}

// AttemptEnableNetworking turns airplane mode off and brings wifi and mobile
// data back up through the shell boundary.
func (w *ForwarderWrapper) AttemptEnableNetworking() error {
	sh, ok := AsShell(w.inner)
	if !ok {
		return fmt.Errorf("wrapped environment cannot execute shell commands")
	}
	steps := [][]string{
		{"settings", "put", "global", "airplane_mode_on", "0"},
		{"am", "broadcast", "-a", "android.intent.action.AIRPLANE_MODE", "--ez", "state", "false"},
		{"svc", "wifi", "enable"},
		{"svc", "data", "enable"},
	}
	for _, args := range steps {
		if _, err := sh.Shell(args...); err != nil {
			return fmt.Errorf("enable networking (%s): %w", args[0], err)
		}
	}
	return nil
}

// Close stops the listener. Buffered forests are discarded.
func (w *ForwarderWrapper) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.listener.Close()
}

func (w *ForwarderWrapper) ensureAppInstalled(sh ShellExecutor, apkPath string) error {
	out, err := sh.Shell("pm", "list", "packages", forwarderPackage)
	if err == nil && strings.Contains(out, forwarderPackage) {
		w.logger.Info("Accessibility forwarder app is already installed.")
		return nil
	}
	if apkPath == "" {
		// The app may still be provisioned in the device image; the snapshot
		// fetcher will surface the problem if it is genuinely absent.
		w.logger.Warn("Forwarder app not detected and no APK path configured; skipping installation.")
		return nil
	}
	in, ok := findInstaller(w.inner)
	if !ok {
		return fmt.Errorf("environment cannot install packages")
	}
	w.logger.Info("Installing accessibility forwarder app.", zap.String("apk", apkPath))
	if err := in.Install(apkPath); err != nil {
		return fmt.Errorf("install forwarder app: %w", err)
	}
	return nil
}

func (w *ForwarderWrapper) enableService(sh ShellExecutor) error {
	steps := [][]string{
		{"settings", "put", "secure", "enabled_accessibility_services", forwarderService},
		{"settings", "put", "secure", "accessibility_enabled", "1"},
		{"settings", "put", "global", "a11y_forwarder_port", strconv.Itoa(w.port)},
	}
	for _, args := range steps {
		if _, err := sh.Shell(args...); err != nil {
			return fmt.Errorf("enable forwarder service: %w", err)
		}
	}
	return nil
}

func (w *ForwarderWrapper) acceptLoop() {
	for {
		conn, err := w.listener.Accept()
		if err != nil {
			// Listener closed during teardown.
			return
		}
		go w.readForests(conn)
	}
}

// readForests consumes one JSON forest per line from the device stream.
func (w *ForwarderWrapper) readForests(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	// Forests for busy screens run well past the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var forest Forest
		if err := w.json.Unmarshal(line, &forest); err != nil {
			w.logger.Warn("Discarding malformed forest payload.", zap.Error(err))
			continue
		}
		w.mu.Lock()
		w.buffered = append(w.buffered, &forest)
		w.mu.Unlock()
	}
}

func findInstaller(h EnvironmentHandle) (apkInstaller, bool) {
	for link := h; link != nil; link = link.Wrapped() {
		if in, ok := link.(apkInstaller); ok {
			return in, true
		}
	}
	return nil, false
}

func reverser(h EnvironmentHandle) (portReverser, bool) {
	for link := h; link != nil; link = link.Wrapped() {
		if rev, ok := link.(portReverser); ok {
			return rev, true
		}
	}
	return nil, false
}
