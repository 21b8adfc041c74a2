// File: internal/device/adb.go
// Description: The ADB-backed root environment handle and the shell-level
// device queries built on top of any ShellExecutor.

package device

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const adbCommandTimeout = 30 * time.Second

// ADBEnvironment is the root environment handle: a live device session
// reached through the adb binary. It exposes no capabilities of its own;
// wrappers add those.
type ADBEnvironment struct {
	adbPath    string
	deviceName string
	logger     *zap.Logger
}

// NewADBEnvironment returns a root handle for the named device. The adb path
// may start with "~", which is expanded against the user's home directory.
func NewADBEnvironment(adbPath, deviceName string, logger *zap.Logger) *ADBEnvironment {
	return &ADBEnvironment{
		adbPath:    expandHome(adbPath),
		deviceName: deviceName,
		logger:     logger.Named("adb"),
	}
}

// Wrapped implements EnvironmentHandle. The ADB environment is always the
// root of the chain.
func (e *ADBEnvironment) Wrapped() EnvironmentHandle { return nil }

// Exposes implements EnvironmentHandle. The bare handle provides no
// capabilities.
func (e *ADBEnvironment) Exposes(Capability) bool { return false }

// DeviceName returns the ADB device name this handle targets.
func (e *ADBEnvironment) DeviceName() string { return e.deviceName }

// Shell runs `adb -s <device> shell <args...>` and returns combined output.
func (e *ADBEnvironment) Shell(args ...string) (string, error) {
	return e.run(append([]string{"shell"}, args...)...)
}

// Push copies a local file onto the device.
func (e *ADBEnvironment) Push(localPath, remotePath string) error {
	_, err := e.run("push", localPath, remotePath)
	return err
}

// Pull copies a remote file or directory into the given local directory.
func (e *ADBEnvironment) Pull(remotePath, localDir string) error {
	_, err := e.run("pull", remotePath, localDir)
	return err
}

// Install installs a package from the host onto the device.
func (e *ADBEnvironment) Install(apkPath string) error {
	_, err := e.run("install", "-r", apkPath)
	return err
}

// Connect issues `adb connect` for a remote "host:port" device. Used in
// Remote mode before the rest of the environment is built.
func (e *ADBEnvironment) Connect() error {
	out, err := e.runWithoutDevice("connect", e.deviceName)
	if err != nil {
		return fmt.Errorf("adb connect %s: %w", e.deviceName, err)
	}
	lower := strings.ToLower(out)
	if !strings.Contains(lower, "connected") {
		return fmt.Errorf("adb connect %s: unexpected output %q", e.deviceName, out)
	}
	e.logger.Info("Connected to remote device.", zap.String("device", e.deviceName))
	return nil
}

// Reverse forwards a device-side TCP port back to the host. In remote mode
// the emulator runs inside a container, where the loopback alias resolves to
// the container rather than the host; `adb reverse` routes the forwarder's
// stream back to us.
func (e *ADBEnvironment) Reverse(devicePort, hostPort int) error {
	_, err := e.run("reverse", fmt.Sprintf("tcp:%d", devicePort), fmt.Sprintf("tcp:%d", hostPort))
	return err
}

func (e *ADBEnvironment) run(args ...string) (string, error) {
	full := append([]string{"-s", e.deviceName}, args...)
	return e.exec(full...)
}

func (e *ADBEnvironment) runWithoutDevice(args ...string) (string, error) {
	return e.exec(args...)
}

func (e *ADBEnvironment) exec(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), adbCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.adbPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("adb %s: %w (output: %s)",
			strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// -- Shell-level device queries --

// CheckAirplaneMode reports whether airplane mode is enabled. The query runs
// over a flaky shell transport, so it is retried up to probes times before
// the last error is surfaced.
func CheckAirplaneMode(sh ShellExecutor, probes int) (bool, error) {
	var lastErr error
	for i := 0; i < probes; i++ {
		out, err := sh.Shell("settings", "get", "global", "airplane_mode_on")
		if err != nil {
			lastErr = err
			continue
		}
		switch strings.TrimSpace(out) {
		case "1":
			return true, nil
		case "0", "null":
			return false, nil
		default:
			lastErr = fmt.Errorf("unexpected airplane mode value %q", strings.TrimSpace(out))
		}
	}
	return false, lastErr
}

var sizeRe = regexp.MustCompile(`(\d+)x(\d+)`)

// ScreenSize returns the physical screen size of the device as (width, height).
func ScreenSize(sh ShellExecutor) (int, int, error) {
	out, err := sh.Shell("wm", "size")
	if err != nil {
		return 0, 0, err
	}
	return parseScreenSize(out, "Physical size")
}

// LogicalScreenSize returns the logical screen size, which differs from the
// physical size when orientation or resolution has been changed. Falls back
// to the physical size when no override is set.
func LogicalScreenSize(sh ShellExecutor) (int, int, error) {
	out, err := sh.Shell("wm", "size")
	if err != nil {
		return 0, 0, err
	}
	if w, h, err := parseScreenSize(out, "Override size"); err == nil {
		return w, h, nil
	}
	return parseScreenSize(out, "Physical size")
}

func parseScreenSize(out, label string) (int, int, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, label) {
			continue
		}
		m := sizeRe.FindStringSubmatch(line)
		if m == nil {
			break
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		return w, h, nil
	}
	return 0, 0, fmt.Errorf("no %q in wm size output: %q", label, strings.TrimSpace(out))
}

const uiautomatorDumpPath = "/sdcard/window_dump.xml"

// UIAutomatorDump produces the XML UI hierarchy via the synchronous
// `uiautomator dump` shell query and returns the raw document.
func UIAutomatorDump(sh ShellExecutor) (string, error) {
	if _, err := sh.Shell("uiautomator", "dump", uiautomatorDumpPath); err != nil {
		return "", fmt.Errorf("uiautomator dump: %w", err)
	}
	out, err := sh.Shell("cat", uiautomatorDumpPath)
	if err != nil {
		return "", fmt.Errorf("read uiautomator dump: %w", err)
	}
	return out, nil
}
