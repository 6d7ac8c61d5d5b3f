package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from a directory with no config file.
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })
	os.Unsetenv(EnvConfig)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"os/exec.Command"}, cfg.Deny)
	assert.Equal(t, "dangerous_api_profile.json", cfg.Output)
	assert.Equal(t, 1024, cfg.Capacity)
	assert.True(t, cfg.HookMain)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
deny:
  - os/exec.Command
  - syscall.Exec
  - unsafeCopy
output: audit.json
capacity: 64
hook_main: false
log_level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"os/exec.Command", "syscall.Exec", "unsafeCopy"}, cfg.Deny)
	assert.Equal(t, "audit.json", cfg.Output)
	assert.Equal(t, 64, cfg.Capacity)
	assert.False(t, cfg.HookMain)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deny: [syscall.Exec]\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"syscall.Exec"}, cfg.Deny)
	assert.Equal(t, 1024, cfg.Capacity)
	assert.True(t, cfg.HookMain)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deny: [syscall.Exec]\n"), 0o600))
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"syscall.Exec"}, cfg.Deny)
}

func TestLoad_ExplicitMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deny: {not a list"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty denylist", func(c *Config) { c.Deny = nil }, "denylist is empty"},
		{"empty name", func(c *Config) { c.Deny = []string{""} }, "empty name"},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, "capacity"},
		{"negative capacity", func(c *Config) { c.Capacity = -1 }, "capacity"},
		{"empty output", func(c *Config) { c.Output = "" }, "output"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
