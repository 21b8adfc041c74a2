// internal/config/config_test.go
package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.Set("engine.rpc_url", "http://127.0.0.1:3000/rpc")
	return v
}

func TestNewConfigFromViper_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfigFromViper(newTestViper())
	require.NoError(t, err)

	assert.Equal(t, ConnectionLocal, cfg.Device().ConnectionType)
	assert.Equal(t, A11yMethodForwarder, cfg.Device().A11yMethod)
	assert.Equal(t, 5, cfg.Snapshot().MaxRetries)
	assert.Equal(t, time.Second, cfg.Snapshot().RetryDelay)
	assert.Equal(t, 3, cfg.Engine().MaxAttempts)
	assert.Equal(t, 120*time.Second, cfg.Engine().RequestTimeout)
	assert.False(t, cfg.Results().Enabled)
	assert.Equal(t, "console", cfg.Logger().Format)
}

// Decoding must reach the private Config fields: a value present in the
// viper state has to come back out of the getters, not a zero value.
func TestLoad_PopulatesPrivateSections(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
engine:
  rpc_url: http://10.0.0.7:3000/rpc
  max_attempts: 4
device:
  connection_type: Remote
  remote_host: bench-emulator
snapshot:
  max_retries: 8
logger:
  level: debug
`)))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.7:3000/rpc", cfg.Engine().RPCURL)
	assert.Equal(t, 4, cfg.Engine().MaxAttempts)
	assert.Equal(t, ConnectionRemote, cfg.Device().ConnectionType)
	assert.Equal(t, "bench-emulator", cfg.Device().RemoteHost)
	assert.Equal(t, 8, cfg.Snapshot().MaxRetries)
	assert.Equal(t, "debug", cfg.Logger().Level)

	// A populated RPC URL must also survive into validation, since a lost
	// value here would wrongly abort startup.
	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper_MissingRPCURLIsFatal(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.rpc_url")
}

func TestNewConfigFromViper_EnvironmentBindings(t *testing.T) {
	t.Setenv("DROIDBENCH_RPC_URL", "http://engine:3000/rpc")
	t.Setenv("DROIDBENCH_CONNECTION_TYPE", "Remote")
	t.Setenv("DROIDBENCH_REMOTE_HOST", "emulator-host")
	t.Setenv("DROIDBENCH_ADB_PORT", "5556")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "http://engine:3000/rpc", cfg.Engine().RPCURL)
	assert.Equal(t, ConnectionRemote, cfg.Device().ConnectionType)
	assert.Equal(t, "emulator-host:5556", cfg.Device().DeviceName())
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(v *viper.Viper)
		errPart string
	}{
		{"zero engine attempts", func(v *viper.Viper) { v.Set("engine.max_attempts", 0) }, "max_attempts"},
		{"zero snapshot retries", func(v *viper.Viper) { v.Set("snapshot.max_retries", 0) }, "max_retries"},
		{"negative retry delay", func(v *viper.Viper) { v.Set("snapshot.retry_delay", "-1s") }, "retry_delay"},
		{"bogus connection type", func(v *viper.Viper) { v.Set("device.connection_type", "Telepathic") }, "connection_type"},
		{"bogus a11y method", func(v *viper.Viper) { v.Set("device.a11y_method", "seance") }, "a11y_method"},
		{"results enabled without url", func(v *viper.Viper) { v.Set("results.enabled", true) }, "results.url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := newTestViper()
			tc.mutate(v)
			_, err := NewConfigFromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errPart)
		})
	}
}

func TestDeviceName(t *testing.T) {
	t.Parallel()

	t.Run("remote composes host and port", func(t *testing.T) {
		d := DeviceConfig{ConnectionType: ConnectionRemote, RemoteHost: "10.1.2.3", RemoteADBPort: "5555"}
		assert.Equal(t, "10.1.2.3:5555", d.DeviceName())
	})

	t.Run("local prefers explicit device id", func(t *testing.T) {
		d := DeviceConfig{ConnectionType: ConnectionLocal, DeviceID: "pixel-7", ConsolePort: 5554}
		assert.Equal(t, "pixel-7", d.DeviceName())
	})

	t.Run("local falls back to console port", func(t *testing.T) {
		d := DeviceConfig{ConnectionType: ConnectionLocal, ConsolePort: 5556}
		assert.Equal(t, "emulator-5556", d.DeviceName())
	})
}

func TestSettersMutateConfig(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfigFromViper(newTestViper())
	require.NoError(t, err)

	cfg.SetDeviceConnectionType(ConnectionRemote)
	cfg.SetEngineRPCURL("http://other:3000/rpc")
	cfg.SetSnapshotMaxRetries(9)

	assert.Equal(t, ConnectionRemote, cfg.Device().ConnectionType)
	assert.Equal(t, "http://other:3000/rpc", cfg.Engine().RPCURL)
	assert.Equal(t, 9, cfg.Snapshot().MaxRetries)
}
