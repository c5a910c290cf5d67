package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureDisabledIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Configure(dir, Config{DebugMode: false}))

	Get(CategoryNidra).Info("should not panic or write anything")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestConfigureEnabledWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Configure(dir, Config{DebugMode: true, Level: "debug"}))
	t.Cleanup(CloseAll)

	Get(CategoryStore).Info("hello %s", "world")

	logsPath := filepath.Join(dir, "logs")
	entries, err := os.ReadDir(logsPath)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestCategoryDisabledFiltering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Configure(dir, Config{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{string(CategoryStore): false},
	}))
	t.Cleanup(CloseAll)

	require.False(t, IsCategoryEnabled(CategoryStore))
	require.True(t, IsCategoryEnabled(CategoryNidra))
}

func TestTimerStop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Configure(dir, Config{DebugMode: true, Level: "debug"}))
	t.Cleanup(CloseAll)

	timer := StartTimer(CategoryRecall, "TestOperation")
	elapsed := timer.Stop()
	require.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))
}
