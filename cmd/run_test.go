package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSuite_FromFile(t *testing.T) {
	t.Parallel()

	suitePath := filepath.Join(t.TempDir(), "suite.json")
	require.NoError(t, os.WriteFile(suitePath, []byte(`[
		{"id": "3", "name": "ContactsAddContact", "goal": "Add a contact named Ada"},
		{"name": "OpenSettings", "goal": "Open the settings app"}
	]`), 0o644))

	tasks, err := loadSuite(suitePath, "", "")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "3", tasks[0].ID)
	assert.Equal(t, "ContactsAddContact", tasks[0].Name)
	// Tasks without an explicit id get their position in the suite.
	assert.Equal(t, "1", tasks[1].ID)
	assert.Equal(t, "Open the settings app", tasks[1].Goal)
}

func TestLoadSuite_AdHocGoal(t *testing.T) {
	t.Parallel()

	tasks, err := loadSuite("", "turn on airplane mode", "adhoc")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "adhoc", tasks[0].Name)
	assert.Equal(t, "turn on airplane mode", tasks[0].Goal)
	assert.NotEmpty(t, tasks[0].ID)
}

func TestLoadSuite_NothingToRun(t *testing.T) {
	t.Parallel()

	tasks, err := loadSuite("", "", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestLoadSuite_Failures(t *testing.T) {
	t.Parallel()

	_, err := loadSuite(filepath.Join(t.TempDir(), "absent.json"), "", "")
	assert.Error(t, err)

	badPath := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{not a list"), 0o644))
	_, err = loadSuite(badPath, "", "")
	assert.Error(t, err)
}
