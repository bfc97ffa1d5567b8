package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 5000, config.Server.Port)
	assert.Equal(t, int64(400*1024*1024), config.Server.MaxBodyBytes)
	assert.Equal(t, int64(DefaultMaxAgeSeconds), config.Storage.MaxAgeSeconds)
	assert.Equal(t, 500*time.Millisecond, config.Scheduler.SendInterval)
	assert.Equal(t, 10, config.Scheduler.DownloadConcurrency)
	assert.Equal(t, "@every 1m", config.Scheduler.JanitorSchedule)
}

func TestNewDefaultClientConfig(t *testing.T) {
	config := NewDefaultClientConfig()

	assert.Equal(t, 9000, config.Server.Port)
	// Everything else matches the orchestrator defaults.
	assert.Equal(t, int64(400*1024*1024), config.Server.MaxBodyBytes)
	assert.Equal(t, 500*time.Millisecond, config.Scheduler.RunInterval)
}

func TestLoad_ClientKeepsExplicitPort(t *testing.T) {
	// A file that explicitly asks the client for the orchestrator's port
	// number must be honored verbatim.
	path := filepath.Join(t.TempDir(), "mitto-client.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 5000
`), 0o644))

	config, err := Load(NewDefaultClientConfig(), path)
	require.NoError(t, err)
	assert.Equal(t, 5000, config.Server.Port)
}

func TestLoad_ClientDefaultPortWithoutFile(t *testing.T) {
	config, err := Load(NewDefaultClientConfig())
	require.NoError(t, err)
	assert.Equal(t, 9000, config.Server.Port)
}

func TestLoadFromFiles_TomlOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mitto.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 8080

[storage]
max_age_seconds = 3600

[services.Alpha]
upload_url = "http://alpha/upload"
download_url = "http://alpha/download"
runs_per_user = 2
`), 0o644))

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, int64(3600), config.Storage.MaxAgeSeconds)

	// Service keys fold to lower-case, adapter defaults to "client".
	svc, ok := config.Service("alpha")
	require.True(t, ok)
	assert.Equal(t, "http://alpha/upload", svc.UploadURL)
	assert.Equal(t, uint(2), svc.RunsPerUser)
	assert.Equal(t, "client", svc.Adapter)
}

func TestLoadFromFiles_ServiceEnvContract(t *testing.T) {
	t.Setenv("SERVICE_BETA_UPLOAD_URL", "http://beta/upload")
	t.Setenv("SERVICE_BETA_DOWNLOAD_URL", "http://beta/download")
	t.Setenv("SERVICE_BETA_RUNS_PER_USER", "7")
	t.Setenv("SERVICE_BETA_ADAPTER", "jobd")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	svc, ok := config.Service("beta")
	require.True(t, ok)
	assert.Equal(t, "beta", svc.Name)
	assert.Equal(t, "http://beta/upload", svc.UploadURL)
	assert.Equal(t, "http://beta/download", svc.DownloadURL)
	assert.Equal(t, uint(7), svc.RunsPerUser)
	assert.Equal(t, "jobd", svc.Adapter)
}

func TestLoadFromFiles_RunsPerUserDefaultsAndZero(t *testing.T) {
	t.Setenv("SERVICE_GAMMA_UPLOAD_URL", "http://gamma/upload")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	svc, ok := config.Service("gamma")
	require.True(t, ok)
	assert.Equal(t, uint(DefaultRunsPerUser), svc.RunsPerUser)
}

func TestLoadFromFiles_ExplicitZeroRunsPerUser(t *testing.T) {
	// An explicit 0 means the service admits nothing and must not be
	// replaced by the default.
	t.Setenv("SERVICE_DELTA_UPLOAD_URL", "http://delta/upload")
	t.Setenv("SERVICE_DELTA_RUNS_PER_USER", "0")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	svc, ok := config.Service("delta")
	require.True(t, ok)
	assert.Equal(t, uint(0), svc.RunsPerUser)
}

func TestLoadFromFiles_StorageEnv(t *testing.T) {
	t.Setenv("DB_PATH", "/var/lib/mitto/meta.sqlite")
	t.Setenv("DATA_PATH", "/var/lib/mitto/data")
	t.Setenv("MAX_AGE", "7200")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/mitto/meta.sqlite", config.Storage.DBPath)
	assert.Equal(t, "/var/lib/mitto/data", config.Storage.DataPath)
	assert.Equal(t, 2*time.Hour, config.MaxAge())
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 7001, "127.0.0.1")

	assert.Equal(t, 7001, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestServiceLimits(t *testing.T) {
	config := NewDefaultConfig()
	config.Services = map[string]ServiceConfig{
		"a": {Name: "a", RunsPerUser: 3},
		"b": {Name: "b", RunsPerUser: 0},
	}

	limits := config.ServiceLimits()
	assert.Equal(t, map[string]uint{"a": 3, "b": 0}, limits)
}

func TestServiceLookupIsCaseInsensitive(t *testing.T) {
	config := NewDefaultConfig()
	config.Services = map[string]ServiceConfig{
		"alpha": {Name: "alpha"},
	}

	_, ok := config.Service("ALPHA")
	assert.True(t, ok)
	_, ok = config.Service("missing")
	assert.False(t, ok)
}
