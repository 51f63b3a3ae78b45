package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := load(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, Default.DaemonPort, cfg.DaemonPort)
	assert.Equal(t, filepath.Join(dir, "settings.json"), cfg.SettingsPath)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.DBPath)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.True(t, cfg.NotificationsEnabled)
	assert.False(t, cfg.StartVisible)
	assert.Zero(t, cfg.CopyTimeout)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "daemon_port: 9400\ncopy_workers: 3\ncopy_timeout: 30s\nstart_visible: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := load(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, 9400, cfg.DaemonPort)
	assert.Equal(t, 3, cfg.CopyWorkers)
	assert.Equal(t, 30*time.Second, cfg.CopyTimeout)
	assert.True(t, cfg.StartVisible)
}

func TestLoadRejectsBadTickInterval(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("tick_interval: 0s\n"), 0644))

	_, err := load(viper.New(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_interval")
}

func TestLoadIgnorePatterns(t *testing.T) {
	dir := t.TempDir()

	cfg, err := load(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{".dailysync-*.tmp"}, cfg.Ignore)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("ignore:\n  - \"[a-\"\n"), 0644))
	_, err = load(viper.New(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ignore pattern")
}
