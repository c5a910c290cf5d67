package nidra

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleAtFiresImmediatelyForPastTarget(t *testing.T) {
	done := make(chan struct{})
	scheduleAt(context.Background(), time.Now().Add(-time.Second), func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduleAt did not fire for a past target")
	}
}

func TestScheduleAtRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var fnRan int32
	returned := make(chan struct{})
	go func() {
		scheduleAt(ctx, time.Now().Add(time.Hour), func() { atomic.StoreInt32(&fnRan, 1) })
		close(returned)
	}()
	cancel()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("scheduleAt did not return after cancellation")
	}
	require.Zero(t, atomic.LoadInt32(&fnRan), "fn should not have run")
}
