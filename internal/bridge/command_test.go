package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMemoryCommandRemember(t *testing.T) {
	b, _ := newTestBridge(t)
	resp, ok := b.HandleMemoryCommand("remember I prefer tabs over spaces", "sess-1")
	require.True(t, ok)
	assert.Contains(t, resp, "remembered")
	assert.Contains(t, resp, "preference")
}

func TestHandleMemoryCommandForget(t *testing.T) {
	b, _ := newTestBridge(t)
	_, ok := b.HandleMemoryCommand("remember the staging server runs on port 8443", "sess-1")
	require.True(t, ok)

	resp, ok := b.HandleMemoryCommand("forget staging server", "sess-1")
	require.True(t, ok)
	assert.Contains(t, resp, "forgot 1")
}

func TestHandleMemoryCommandForgetNoMatch(t *testing.T) {
	b, _ := newTestBridge(t)
	resp, ok := b.HandleMemoryCommand("forget nonexistent thing", "sess-1")
	require.True(t, ok)
	assert.Contains(t, resp, "found nothing")
}

func TestHandleMemoryCommandRecall(t *testing.T) {
	b, _ := newTestBridge(t)
	_, ok := b.HandleMemoryCommand("remember the staging server runs on port 8443", "sess-1")
	require.True(t, ok)

	resp, ok := b.HandleMemoryCommand("recall staging", "sess-1")
	require.True(t, ok)
	assert.Contains(t, resp, "staging server")
}

func TestHandleMemoryCommandList(t *testing.T) {
	b, _ := newTestBridge(t)
	_, ok := b.HandleMemoryCommand("remember always run tests before pushing", "sess-1")
	require.True(t, ok)

	resp, ok := b.HandleMemoryCommand("list rule", "sess-1")
	require.True(t, ok)
	assert.Contains(t, resp, "always run tests")
}

func TestHandleMemoryCommandListWithNoCategory(t *testing.T) {
	b, _ := newTestBridge(t)
	_, ok := b.HandleMemoryCommand("remember the staging server runs on port 8443", "sess-1")
	require.True(t, ok)

	resp, ok := b.HandleMemoryCommand("list", "sess-1")
	require.True(t, ok)
	assert.Contains(t, resp, "staging server")
}

func TestHandleMemoryCommandReturnsFalseForNonCommand(t *testing.T) {
	b, _ := newTestBridge(t)
	resp, ok := b.HandleMemoryCommand("what is the capital of France?", "sess-1")
	assert.False(t, ok)
	assert.Empty(t, resp)
}
