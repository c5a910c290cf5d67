package dharma

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestApprovalThenApproveResolvesWaiter(t *testing.T) {
	g := NewApprovalGate(10, time.Minute)
	id, err := g.RequestApproval("agent-1", "sess-1", "delete file", "cleanup", nil, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, g.Approve(id, "user-1"))
	}()

	status, err := g.WaitForApproval(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, ApprovalApproved, status)
}

func TestRequestApprovalDenyResolvesWaiter(t *testing.T) {
	g := NewApprovalGate(10, time.Minute)
	id, err := g.RequestApproval("agent-1", "sess-1", "run command", "risky", nil, 0)
	require.NoError(t, err)

	require.NoError(t, g.Deny(id, "too risky", "user-1"))

	status, err := g.WaitForApproval(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, ApprovalDenied, status)
}

func TestRequestApprovalTimesOutAfterTTL(t *testing.T) {
	g := NewApprovalGate(10, 20*time.Millisecond)
	id, err := g.RequestApproval("agent-1", "sess-1", "slow action", "auto", nil, 0)
	require.NoError(t, err)

	status, err := g.WaitForApproval(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, ApprovalTimeout, status)
}

func TestRequestApprovalRejectsOverCapacity(t *testing.T) {
	g := NewApprovalGate(1, time.Minute)
	_, err := g.RequestApproval("agent-1", "sess-1", "a1", "r", nil, 0)
	require.NoError(t, err)

	_, err = g.RequestApproval("agent-2", "sess-1", "a2", "r", nil, 0)
	require.Error(t, err)
}

func TestDestroyResolvesAllPendingAsDenied(t *testing.T) {
	g := NewApprovalGate(10, time.Minute)
	id1, _ := g.RequestApproval("agent-1", "sess-1", "a1", "r", nil, 0)
	id2, _ := g.RequestApproval("agent-2", "sess-1", "a2", "r", nil, 0)

	g.Destroy()

	s1, err := g.WaitForApproval(context.Background(), id1)
	require.NoError(t, err)
	require.Equal(t, ApprovalDenied, s1)

	s2, err := g.WaitForApproval(context.Background(), id2)
	require.NoError(t, err)
	require.Equal(t, ApprovalDenied, s2)

	_, err = g.RequestApproval("agent-3", "sess-1", "a3", "r", nil, 0)
	require.Error(t, err)
}

func TestOnEventReceivesRequestedAndResolvedEvents(t *testing.T) {
	g := NewApprovalGate(10, time.Minute)
	events := make(chan ApprovalEvent, 10)
	g.OnEvent(func(e ApprovalEvent) { events <- e })

	id, _ := g.RequestApproval("agent-1", "sess-1", "a1", "r", nil, 0)
	require.NoError(t, g.Approve(id, "user-1"))

	first := <-events
	require.Equal(t, "requested", first.Type)

	second := <-events
	require.Equal(t, "approved", second.Type)
}

func TestResolvingAlreadyResolvedRequestIsNoOp(t *testing.T) {
	g := NewApprovalGate(10, time.Minute)
	id, _ := g.RequestApproval("agent-1", "sess-1", "a1", "r", nil, 0)

	require.NoError(t, g.Approve(id, "user-1"))
	require.NoError(t, g.Deny(id, "too late", "user-2"))

	status, err := g.WaitForApproval(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, ApprovalApproved, status)
}
