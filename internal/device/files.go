// File: internal/device/files.go
// Description: Host/device file transfer through a scoped temporary staging
// directory. The staging directory is removed on every exit path.

package device

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// PullFile copies the directory holding remotePath from the device into a
// fresh temporary staging directory and returns the local path of the pulled
// file together with a cleanup function. The cleanup function must be called
// when the caller is done with the file; it removes the entire staging
// directory.
func (c *Controller) PullFile(remotePath string) (string, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ft, ok := AsFileTransfer(c.handle)
	if !ok {
		return "", nil, fmt.Errorf("environment cannot transfer files")
	}

	stagingDir, err := os.MkdirTemp("", "droidbench-pull-")
	if err != nil {
		return "", nil, fmt.Errorf("create staging directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			c.logger.Warn("Failed to remove staging directory.",
				zap.String("dir", stagingDir), zap.Error(err))
		}
	}

	remoteDir := path.Dir(remotePath)
	if err := ft.Pull(remoteDir, stagingDir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("pull %s: %w", remoteDir, err)
	}

	// adb pull places the remote directory itself inside the destination.
	localPath := filepath.Join(stagingDir, path.Base(remoteDir), path.Base(remotePath))
	if _, err := os.Stat(localPath); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("pulled file not found at %s: %w", localPath, err)
	}
	return localPath, cleanup, nil
}

// PushFile copies a local file onto the device at remotePath. Stale artifacts
// at the destination are cleared first: the target file itself and, when it
// is a database, its write-ahead and shared-memory sidecars.
func (c *Controller) PushFile(localPath, remotePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ft, ok := AsFileTransfer(c.handle)
	if !ok {
		return fmt.Errorf("environment cannot transfer files")
	}
	sh, ok := AsShell(c.handle)
	if !ok {
		return fmt.Errorf("environment cannot execute shell commands")
	}

	stagingDir, err := os.MkdirTemp("", "droidbench-push-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			c.logger.Warn("Failed to remove staging directory.",
				zap.String("dir", stagingDir), zap.Error(err))
		}
	}()

	// Stage a stable copy so the source cannot change mid-transfer.
	staged := filepath.Join(stagingDir, path.Base(remotePath))
	if err := copyFile(localPath, staged); err != nil {
		return fmt.Errorf("stage %s: %w", localPath, err)
	}

	if err := clearStaleArtifacts(sh, remotePath); err != nil {
		return err
	}
	if _, err := sh.Shell("mkdir", "-p", path.Dir(remotePath)); err != nil {
		return fmt.Errorf("create remote directory: %w", err)
	}
	if err := ft.Push(staged, remotePath); err != nil {
		return fmt.Errorf("push %s: %w", remotePath, err)
	}
	return nil
}

// clearStaleArtifacts removes the destination file and, for databases, the
// -wal and -shm sidecars that would otherwise shadow the pushed content.
func clearStaleArtifacts(sh ShellExecutor, remotePath string) error {
	targets := []string{remotePath}
	if strings.HasSuffix(remotePath, ".db") {
		targets = append(targets, remotePath+"-wal", remotePath+"-shm")
	}
	args := append([]string{"rm", "-f"}, targets...)
	if _, err := sh.Shell(args...); err != nil {
		return fmt.Errorf("clear stale artifacts: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
