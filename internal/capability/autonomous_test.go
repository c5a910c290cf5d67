package capability

import (
	"testing"
	"time"

	"cogcore/internal/mcp"

	"github.com/stretchr/testify/require"
)

func TestHealthScoreWeightsUptimeSuccessAndLatency(t *testing.T) {
	perfect := HealthScore(24*time.Hour, 100, 0, 0)
	require.InDelta(t, 1.0, perfect, 0.001)

	noCalls := HealthScore(0, 0, 0, 1000)
	require.Greater(t, noCalls, 0.0)

	allErrors := HealthScore(24*time.Hour, 100, 100, 0)
	require.Less(t, allErrors, perfect)
}

func TestHealthScoreClampedToUnitInterval(t *testing.T) {
	score := HealthScore(1000*time.Hour, 10, 0, 0)
	require.LessOrEqual(t, score, 1.0)
	require.GreaterOrEqual(t, score, 0.0)
}

func testManager(t *testing.T) (*Registry, *Manager) {
	t.Helper()
	r := NewRegistry()
	m := NewManager(r, ManagerConfig{
		HealthCheckInterval:    time.Hour,
		HealthCheckTimeout:     time.Second,
		MaxConsecutiveFailures: 3,
		MaxRestarts:            5,
		RestartBackoffCap:      time.Second,
		CircuitFailureWindow:   time.Minute,
		CircuitFailureThresh:   3,
		CircuitCooldown:        50 * time.Millisecond,
		CrashWindow:            time.Minute,
		MaxCrashes:             2,
		QuarantineDuration:     50 * time.Millisecond,
	}, nil)
	return r, m
}

func TestSelectTargetExcludesOpenCircuits(t *testing.T) {
	r, m := testManager(t)
	r.Add("a", mcp.MCPServerConfig{})
	r.Add("b", mcp.MCPServerConfig{})

	for i := 0; i < 3; i++ {
		m.circuits.Record("a", false)
	}
	require.Equal(t, CircuitOpen, m.circuits.State("a"))

	id, ok := m.SelectTarget([]string{"a", "b"})
	require.True(t, ok)
	require.Equal(t, "b", id)
}

func TestSelectTargetPrefersHalfOpenAsProbe(t *testing.T) {
	r, m := testManager(t)
	r.Add("a", mcp.MCPServerConfig{})
	r.Add("b", mcp.MCPServerConfig{})

	for i := 0; i < 3; i++ {
		m.circuits.Record("a", false)
	}
	time.Sleep(60 * time.Millisecond) // cooldown elapses -> half-open on next query
	require.Equal(t, CircuitHalfOpen, m.circuits.State("a"))

	id, ok := m.SelectTarget([]string{"a", "b"})
	require.True(t, ok)
	require.Equal(t, "a", id)
}

func TestSelectTargetReturnsFalseWhenAllQuarantined(t *testing.T) {
	r, m := testManager(t)
	r.Add("a", mcp.MCPServerConfig{})

	m.quarantine.RecordCrash("a", time.Now())
	m.quarantine.RecordCrash("a", time.Now())
	require.True(t, m.quarantine.IsQuarantined("a", time.Now()))

	_, ok := m.SelectTarget([]string{"a"})
	require.False(t, ok)
}

func TestQuarantineAutoExpires(t *testing.T) {
	q := NewQuarantine(time.Minute, 1, 30*time.Millisecond)
	q.RecordCrash("srv", time.Now())
	require.True(t, q.IsQuarantined("srv", time.Now()))

	time.Sleep(40 * time.Millisecond)
	require.False(t, q.IsQuarantined("srv", time.Now()))
}

func TestObserveStateTransitionQuarantinesAfterMaxCrashes(t *testing.T) {
	r, m := testManager(t)
	r.Add("a", mcp.MCPServerConfig{})
	require.NoError(t, r.Transition("a", StateStarting))
	require.NoError(t, r.Transition("a", StateReady))
	require.NoError(t, r.Transition("a", StateError))
	m.ObserveStateTransition("a", StateError)

	require.NoError(t, r.Transition("a", StateRestarting))
	require.NoError(t, r.Transition("a", StateStarting))
	require.NoError(t, r.Transition("a", StateReady))
	require.NoError(t, r.Transition("a", StateError))
	m.ObserveStateTransition("a", StateError)

	require.True(t, m.quarantine.IsQuarantined("a", time.Now()))
	info, _ := r.Get("a")
	require.Equal(t, StateStopped, info.State)
}

func TestReleaseQuarantineRestartsServer(t *testing.T) {
	r, m := testManager(t)
	r.Add("a", mcp.MCPServerConfig{})
	require.NoError(t, r.Transition("a", StateStarting))
	require.NoError(t, r.Transition("a", StateReady))
	require.NoError(t, r.Transition("a", StateError))
	require.NoError(t, r.Transition("a", StateStopping))
	require.NoError(t, r.Transition("a", StateStopped))
	m.quarantine.RecordCrash("a", time.Now())

	m.ReleaseQuarantine("a")

	require.False(t, m.quarantine.IsQuarantined("a", time.Now()))
	info, _ := r.Get("a")
	require.Equal(t, StateStarting, info.State)
}
