// internal/device/files_test.go
package device

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidbench-cli/internal/config"
)

func newFilesController(root *fakeRoot) *Controller {
	return NewController(root, config.A11yMethodNone, quietFetcher(1), nil, zap.NewNop())
}

func TestPullFile_StagesDirectoryAndResolvesFile(t *testing.T) {
	t.Parallel()

	root := &fakeRoot{}
	// adb pull of a directory drops the directory itself inside the
	// destination; the fake mimics that layout.
	root.pullHook = func(remotePath, localDir string) error {
		dir := filepath.Join(localDir, "databases")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "tasks.db"), []byte("payload"), 0o644)
	}
	c := newFilesController(root)

	localPath, cleanup, err := c.PullFile("/data/data/com.example/databases/tasks.db")
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "tasks.db", filepath.Base(localPath))

	stagingDir := filepath.Dir(filepath.Dir(localPath))
	assert.True(t, strings.Contains(stagingDir, "droidbench-pull-"))

	cleanup()
	_, err = os.Stat(stagingDir)
	assert.True(t, os.IsNotExist(err))
}

func TestPullFile_MissingFileCleansUpStaging(t *testing.T) {
	t.Parallel()

	root := &fakeRoot{}
	var stagedInto string
	root.pullHook = func(remotePath, localDir string) error {
		stagedInto = localDir
		// Pull succeeds but delivers nothing at the expected path.
		return os.MkdirAll(filepath.Join(localDir, "databases"), 0o755)
	}
	c := newFilesController(root)

	_, _, err := c.PullFile("/data/data/com.example/databases/tasks.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pulled file not found")

	_, statErr := os.Stat(stagedInto)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPushFile_ClearsStaleArtifactsAndStagesCopy(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "source.db")
	require.NoError(t, os.WriteFile(src, []byte("fresh data"), 0o644))

	root := &fakeRoot{}
	c := newFilesController(root)

	const remote = "/data/data/com.example/databases/state.db"
	require.NoError(t, c.PushFile(src, remote))

	// Database sidecars are cleared along with the target.
	require.NotEmpty(t, root.calls)
	rm := root.calls[0]
	assert.Equal(t, []string{"rm", "-f", remote, remote + "-wal", remote + "-shm"}, rm)
	mkdir := root.calls[1]
	assert.Equal(t, []string{"mkdir", "-p", "/data/data/com.example/databases"}, mkdir)

	require.Len(t, root.pushes, 1)
	pushedLocal, pushedRemote := root.pushes[0][0], root.pushes[0][1]
	assert.Equal(t, remote, pushedRemote)
	// The pushed file is the staged copy, named after the remote target.
	assert.Equal(t, "state.db", filepath.Base(pushedLocal))
	assert.NotEqual(t, src, pushedLocal)
}

func TestPushFile_NonDatabaseTargetClearsOnlyItself(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))

	root := &fakeRoot{}
	c := newFilesController(root)

	require.NoError(t, c.PushFile(src, "/sdcard/notes.txt"))
	assert.Equal(t, []string{"rm", "-f", "/sdcard/notes.txt"}, root.calls[0])
}

func TestPushFile_MissingSourceFails(t *testing.T) {
	t.Parallel()

	root := &fakeRoot{}
	c := newFilesController(root)

	err := c.PushFile(filepath.Join(t.TempDir(), "absent"), "/sdcard/absent")
	require.Error(t, err)
	assert.Empty(t, root.pushes)
}
