// Package nidra implements Component D's idle detector: a single-threaded
// cooperative state machine that tracks LISTENING/DREAMING/DEEP_SLEEP phases
// and invokes registered on-dream handlers when the idle threshold is
// crossed (§3.4, §4.3.1).
package nidra

import (
	"context"
	"sync"
	"time"

	"cogcore/internal/logging"
	"cogcore/internal/store"
)

// Phase mirrors §3.4's current-state enumeration.
type Phase string

const (
	PhaseListening Phase = "LISTENING"
	PhaseDreaming  Phase = "DREAMING"
	PhaseDeepSleep Phase = "DEEP_SLEEP"
)

// ProgressFunc lets an on-dream handler report its own phase fraction back
// to the daemon for persistence into consolidation_progress.
type ProgressFunc func(phase string, pct float64)

// OnDreamHandler runs once the idle threshold is crossed. It is handed a
// ProgressFunc to report incremental completion.
type OnDreamHandler func(ctx context.Context, report ProgressFunc) error

// Daemon is the Nidra idle-detector state machine.
type Daemon struct {
	mu sync.Mutex

	idx               *store.Store
	idleThreshold     time.Duration
	heartbeatInterval time.Duration

	phase          Phase
	lastActivity   time.Time
	phaseEnteredAt time.Time
	lastHeartbeat  time.Time

	// idleDeadline is when the idle threshold will next be crossed. restart
	// wakes the idle watcher so it abandons its current chunked wait and
	// recomputes against a deadline Touch just moved.
	idleDeadline time.Time
	restart      chan struct{}

	handlers []OnDreamHandler

	heartbeat  *time.Ticker
	stopOnce   sync.Once
	stopSignal chan struct{}
}

// New constructs a Nidra daemon. Call Restore before Start to pick up
// persisted state from a prior run.
func New(idx *store.Store, idleThreshold, heartbeatInterval time.Duration) *Daemon {
	now := time.Now().UTC()
	return &Daemon{
		idx:               idx,
		idleThreshold:     idleThreshold,
		heartbeatInterval: heartbeatInterval,
		phase:             PhaseListening,
		lastActivity:      now,
		phaseEnteredAt:    now,
		lastHeartbeat:     now,
		idleDeadline:      now.Add(idleThreshold),
		restart:           make(chan struct{}, 1),
		stopSignal:        make(chan struct{}),
	}
}

// OnDream registers a handler invoked when the idle threshold is crossed.
func (d *Daemon) OnDream(h OnDreamHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Restore loads persisted state; invalid fields default to LISTENING at now
// (§4.3.1).
func (d *Daemon) Restore(ctx context.Context) error {
	row, err := d.idx.LoadNidraState(ctx)
	if err != nil {
		logging.NidraDebug("restore: no persisted state, defaulting to LISTENING: %v", err)
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	phase := Phase(row.CurrentState)
	switch phase {
	case PhaseListening, PhaseDreaming, PhaseDeepSleep:
		d.phase = phase
	default:
		d.phase = PhaseListening
	}
	if row.LastStateChangeMillis > 0 {
		d.phaseEnteredAt = time.UnixMilli(row.LastStateChangeMillis).UTC()
	}
	if row.LastHeartbeatMillis > 0 {
		d.lastHeartbeat = time.UnixMilli(row.LastHeartbeatMillis).UTC()
	}
	d.lastActivity = time.Now().UTC()
	d.idleDeadline = d.lastActivity.Add(d.idleThreshold)
	logging.Nidra("restored nidra state: phase=%s", d.phase)
	return nil
}

// Start launches the heartbeat ticker and the idle watcher. The caller is
// expected to call Start exactly once per process.
func (d *Daemon) Start(ctx context.Context) {
	d.mu.Lock()
	d.heartbeat = time.NewTicker(d.heartbeatInterval)
	d.mu.Unlock()

	go d.heartbeatLoop(ctx)
	go d.idleWatchLoop(ctx)
}

func (d *Daemon) heartbeatLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.flushHeartbeat(context.Background())
			return
		case <-d.stopSignal:
			d.flushHeartbeat(context.Background())
			return
		case <-d.heartbeat.C:
			d.flushHeartbeat(ctx)
		}
	}
}

// idleWatchLoop waits for idleDeadline using the chunked long-timeout
// scheduler (§4.3.3), restarting whenever Touch moves the deadline out from
// under it.
func (d *Daemon) idleWatchLoop(ctx context.Context) {
	for {
		d.mu.Lock()
		deadline := d.idleDeadline
		d.mu.Unlock()

		waitCtx, cancel := context.WithCancel(ctx)
		fired := make(chan struct{})
		go func() {
			scheduleAt(waitCtx, deadline, func() { close(fired) })
		}()

		select {
		case <-ctx.Done():
			cancel()
			return
		case <-d.stopSignal:
			cancel()
			return
		case <-d.restart:
			cancel()
			// deadline moved under us; loop recomputes and waits again
		case <-fired:
			cancel()
			d.onIdleThresholdCrossed(ctx)
		}
	}
}

// Touch records activity, pushing the idle deadline forward, and, if
// currently asleep and interrupt is true, transitions back to LISTENING.
func (d *Daemon) Touch(interrupt bool) {
	d.mu.Lock()
	d.lastActivity = time.Now().UTC()
	d.idleDeadline = d.lastActivity.Add(d.idleThreshold)
	if interrupt && (d.phase == PhaseDreaming || d.phase == PhaseDeepSleep) {
		d.transition(PhaseListening)
	}
	d.mu.Unlock()

	select {
	case d.restart <- struct{}{}:
	default:
	}
}

func (d *Daemon) onIdleThresholdCrossed(ctx context.Context) {
	d.mu.Lock()
	d.transition(PhaseDreaming)
	handlers := append([]OnDreamHandler(nil), d.handlers...)
	d.mu.Unlock()

	for _, h := range handlers {
		report := func(phase string, pct float64) {
			logging.NidraDebug("dream handler progress: phase=%s pct=%.2f", phase, pct)
			state, err := d.idx.LoadNidraState(ctx)
			if err != nil {
				return
			}
			state.ConsolidationPhase = phase
			state.ConsolidationProgress = pct
			state.UpdatedAtMillis = time.Now().UTC().UnixMilli()
			if err := d.idx.SaveNidraState(ctx, state); err != nil {
				logging.NidraDebug("progress flush failed: %v", err)
			}
		}
		if err := h(ctx, report); err != nil {
			logging.Get(logging.CategoryNidra).Error("on-dream handler failed: %v", err)
		}
	}

	d.mu.Lock()
	d.transition(PhaseDeepSleep)
	d.idleDeadline = time.Now().UTC().Add(d.idleThreshold)
	d.mu.Unlock()
}

// transition must be called with d.mu held.
func (d *Daemon) transition(next Phase) {
	if d.phase == next {
		return
	}
	logging.Nidra("phase transition: %s -> %s", d.phase, next)
	d.phase = next
	d.phaseEnteredAt = time.Now().UTC()
}

// Phase returns the current phase.
func (d *Daemon) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

func (d *Daemon) flushHeartbeat(ctx context.Context) {
	d.mu.Lock()
	d.lastHeartbeat = time.Now().UTC()
	phase := d.phase
	phaseEnteredAt := d.phaseEnteredAt
	lastHeartbeat := d.lastHeartbeat
	d.mu.Unlock()

	state, err := d.idx.LoadNidraState(ctx)
	if err != nil {
		return
	}
	state.CurrentState = string(phase)
	state.LastStateChangeMillis = phaseEnteredAt.UnixMilli()
	state.LastHeartbeatMillis = lastHeartbeat.UnixMilli()
	state.UpdatedAtMillis = time.Now().UTC().UnixMilli()
	if err := d.idx.SaveNidraState(ctx, state); err != nil {
		logging.NidraDebug("heartbeat flush failed: %v", err)
	}
}

// Stop halts the daemon and flushes a final heartbeat.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopSignal)
		d.mu.Lock()
		if d.heartbeat != nil {
			d.heartbeat.Stop()
		}
		d.mu.Unlock()
	})
}
