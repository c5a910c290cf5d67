package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigThresholds(t *testing.T) {
	cfg := DefaultConfig("/tmp/home")
	require.Equal(t, 0.67, cfg.Sabha.ConsensusThreshold)
	require.Equal(t, 100, cfg.Chetana.ConceptCap)
	require.Equal(t, 3, cfg.Capability.MaxConsecutiveFailures)
	require.Equal(t, 16, cfg.JobQueue.MaxConcurrent)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"), dir)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.Home)
	require.Equal(t, 10, cfg.Recall.DefaultTopK)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Recall.DefaultTopK = 25
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path, dir)
	require.NoError(t, err)
	require.Equal(t, 25, loaded.Recall.DefaultTopK)
}
