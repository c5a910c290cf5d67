package capability

import (
	"testing"
	"time"

	cogerrors "cogcore/internal/errors"
	"cogcore/internal/mcp"

	"github.com/stretchr/testify/require"
)

func TestAddServerStartsIdle(t *testing.T) {
	r := NewRegistry()
	r.Add("srv-1", mcp.MCPServerConfig{ID: "srv-1"})

	info, ok := r.Get("srv-1")
	require.True(t, ok)
	require.Equal(t, StateIdle, info.State)
}

func TestLegalTransitionSequenceSucceeds(t *testing.T) {
	r := NewRegistry()
	r.Add("srv-1", mcp.MCPServerConfig{})

	require.NoError(t, r.Transition("srv-1", StateStarting))
	require.NoError(t, r.Transition("srv-1", StateReady))
	require.NoError(t, r.Transition("srv-1", StateStopping))
	require.NoError(t, r.Transition("srv-1", StateStopped))
	require.NoError(t, r.Transition("srv-1", StateIdle))
}

func TestIllegalTransitionReturnsProtocolError(t *testing.T) {
	r := NewRegistry()
	r.Add("srv-1", mcp.MCPServerConfig{})

	err := r.Transition("srv-1", StateReady)
	require.Error(t, err)
	var pe *cogerrors.ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestTransitionToReadySetsStartedAt(t *testing.T) {
	r := NewRegistry()
	r.Add("srv-1", mcp.MCPServerConfig{})
	require.NoError(t, r.Transition("srv-1", StateStarting))
	require.NoError(t, r.Transition("srv-1", StateReady))

	info, _ := r.Get("srv-1")
	require.False(t, info.Stats.StartedAt.IsZero())
}

func TestRecordCallUpdatesEWMALatencyAndErrors(t *testing.T) {
	r := NewRegistry()
	r.Add("srv-1", mcp.MCPServerConfig{})

	r.RecordCall("srv-1", true, 100)
	r.RecordCall("srv-1", false, 200)

	info, _ := r.Get("srv-1")
	require.EqualValues(t, 2, info.Stats.TotalCalls)
	require.EqualValues(t, 1, info.Stats.TotalErrors)
	require.EqualValues(t, 1, info.Stats.ConsecutiveFailures)
	require.InDelta(t, 120, info.Stats.AverageLatencyMs, 0.001)
}

func TestEventsFireOnAddAndStateChange(t *testing.T) {
	r := NewRegistry()
	var types []string
	r.OnEvent(func(e Event) { types = append(types, e.Type) })

	r.Add("srv-1", mcp.MCPServerConfig{})
	require.NoError(t, r.Transition("srv-1", StateStarting))
	require.NoError(t, r.Transition("srv-1", StateError))

	require.Contains(t, types, "server:added")
	require.Contains(t, types, "server:state-changed")
	require.Contains(t, types, "server:error")
}

func TestSetToolsEmitsBothToolEvents(t *testing.T) {
	r := NewRegistry()
	var types []string
	r.OnEvent(func(e Event) { types = append(types, e.Type) })
	r.Add("srv-1", mcp.MCPServerConfig{})

	r.SetTools("srv-1", []mcp.MCPToolSchema{{Name: "read_file"}})

	require.Contains(t, types, "server:tools-changed")
	require.Contains(t, types, "registry:tools-updated")
}

func TestUptimeZeroOutsideReadyState(t *testing.T) {
	s := Stats{StartedAt: time.Now().Add(-time.Hour)}
	require.Equal(t, time.Duration(0), s.Uptime(StateStarting, time.Now()))
	require.Greater(t, s.Uptime(StateReady, time.Now()), time.Duration(0))
}
