package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:5001", cfg.BackendURL)
	require.Equal(t, 50, cfg.HistoryLimit)
	require.Equal(t, 5, cfg.UndoSeconds)
	require.Equal(t, 30, cfg.Speech.BubbleSeconds)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aidj.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend_url: http://dj.local:8080/
user_id: user-1
history_limit: 10
undo_seconds: 8
speech:
  voice_id: custom-voice
  muted: true
log:
  dir: logs
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://dj.local:8080", cfg.BackendURL)
	require.Equal(t, "user-1", cfg.UserID)
	require.Equal(t, 10, cfg.HistoryLimit)
	require.Equal(t, 8, cfg.UndoSeconds)
	require.Equal(t, "custom-voice", cfg.Speech.VoiceID)
	require.True(t, cfg.Speech.Muted)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, filepath.Join(dir, "logs"), cfg.Log.Dir)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aidj.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: http://from-file:1\nhistory_limit: 10\n"), 0o644))

	t.Setenv("AIDJ_BACKEND_URL", "http://from-env:2")
	t.Setenv("AIDJ_HISTORY_LIMIT", "25")
	t.Setenv("AIDJ_MUTED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://from-env:2", cfg.BackendURL)
	require.Equal(t, 25, cfg.HistoryLimit)
	require.True(t, cfg.Speech.Muted)
}

func TestMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:5001", cfg.BackendURL)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("AIDJ_HISTORY_LIMIT", "not-a-number")
	t.Setenv("AIDJ_UNDO_SECONDS", "-3")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 50, cfg.HistoryLimit)
	require.Equal(t, 5, cfg.UndoSeconds)
}
