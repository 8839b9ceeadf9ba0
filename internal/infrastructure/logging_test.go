package infrastructure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"":        zerolog.InfoLevel,
		"chatty":  zerolog.InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestSetupLogging_WritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, file, err := SetupLogging(dir, "info", false)
	require.NoError(t, err)

	logger.Warn().Str("path", "/d/passwords.docx").Msg("decoy compromised")
	require.NoError(t, file.Close())

	data, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"decoy compromised"`)
	assert.Contains(t, string(data), `"service":"ransomtrap"`)
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "ransomtrap_old.log")
	fresh := filepath.Join(dir, "ransomtrap_new.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
	past := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	removed, err := CleanupOldLogs(dir, 7*24*time.Hour, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}
