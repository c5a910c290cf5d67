package capability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntegrateAddsNewServerFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	_, m := testManager(t)
	m.registry = r
	w, err := NewDiscoveryWatcher(r, m, []string{dir})
	require.NoError(t, err)
	defer w.watcher.Close()

	path := filepath.Join(dir, "srv-x.json")
	data, _ := json.Marshal(map[string]interface{}{
		"id":       "srv-x",
		"enabled":  true,
		"protocol": "http",
		"base_url": "http://localhost:9999",
		"timeout":  "5s",
	})
	require.NoError(t, os.WriteFile(path, data, 0644))

	w.integrate(context.Background(), path)

	info, ok := r.Get("srv-x")
	require.True(t, ok)
	require.Equal(t, StateIdle, info.State)
}

func TestIntegrateDerivesIDFromFilenameWhenMissing(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	_, m := testManager(t)
	m.registry = r
	w, err := NewDiscoveryWatcher(r, m, []string{dir})
	require.NoError(t, err)
	defer w.watcher.Close()

	path := filepath.Join(dir, "unnamed.json")
	data, _ := json.Marshal(map[string]interface{}{"protocol": "http"})
	require.NoError(t, os.WriteFile(path, data, 0644))

	w.integrate(context.Background(), path)

	_, ok := r.Get("unnamed")
	require.True(t, ok)
}

func TestIntegrateIgnoresMalformedConfig(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	_, m := testManager(t)
	m.registry = r
	w, err := NewDiscoveryWatcher(r, m, []string{dir})
	require.NoError(t, err)
	defer w.watcher.Close()

	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	w.integrate(context.Background(), path)

	require.Empty(t, r.List())
}

func TestProcessDebouncedIntegratesSettledEntry(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	_, m := testManager(t)
	m.registry = r
	w, err := NewDiscoveryWatcher(r, m, []string{dir})
	require.NoError(t, err)
	w.debounceDur = 20 * time.Millisecond
	defer w.watcher.Close()

	path := filepath.Join(dir, "srv-y.json")
	data, _ := json.Marshal(map[string]interface{}{"id": "srv-y", "protocol": "http", "timeout": "5s"})
	require.NoError(t, os.WriteFile(path, data, 0644))

	w.mu.Lock()
	w.debounceMap[path] = time.Now().Add(-time.Hour)
	w.mu.Unlock()

	w.processDebounced(context.Background())

	_, ok := r.Get("srv-y")
	require.True(t, ok)
	w.mu.Lock()
	_, stillPending := w.debounceMap[path]
	w.mu.Unlock()
	require.False(t, stillPending)
}
