package capability

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitState mirrors gobreaker's three states under our own naming so
// callers never import gobreaker directly.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

var errRecordedFailure = errors.New("recorded failure")

// breaker wraps a single server's sony/gobreaker/v2 instance. ReadyToTrip
// counts consecutive failures within the configured window; Interval
// resets counts on a rolling basis, approximating §4.7.2's ring-pruned
// failure window without reimplementing gobreaker's generation counting.
type breaker struct {
	gb *gobreaker.CircuitBreaker[any]
}

func newBreaker(failureThreshold int, windowMs, cooldownMs time.Duration) *breaker {
	settings := gobreaker.Settings{
		MaxRequests: 1,
		Interval:    windowMs,
		Timeout:     cooldownMs,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold)
		},
	}
	return &breaker{gb: gobreaker.NewCircuitBreaker[any](settings)}
}

// Record feeds a call outcome into the breaker after the fact; the actual
// RPC already happened via the mcp transport, this only updates state.
func (b *breaker) Record(success bool) {
	_, _ = b.gb.Execute(func() (any, error) {
		if success {
			return nil, nil
		}
		return nil, errRecordedFailure
	})
}

func (b *breaker) State() CircuitState {
	switch b.gb.State() {
	case gobreaker.StateOpen:
		return CircuitOpen
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}

// CircuitManager owns one breaker per server.
type CircuitManager struct {
	mu               sync.Mutex
	breakers         map[string]*breaker
	failureThreshold int
	windowMs         time.Duration
	cooldownMs       time.Duration
}

// NewCircuitManager constructs a per-server breaker factory (§4.7.2).
func NewCircuitManager(failureThreshold int, windowMs, cooldownMs time.Duration) *CircuitManager {
	return &CircuitManager{
		breakers:         make(map[string]*breaker),
		failureThreshold: failureThreshold,
		windowMs:         windowMs,
		cooldownMs:       cooldownMs,
	}
}

func (c *CircuitManager) get(id string) *breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[id]
	if !ok {
		b = newBreaker(c.failureThreshold, c.windowMs, c.cooldownMs)
		c.breakers[id] = b
	}
	return b
}

// Record feeds a call, health-check, or crash outcome for id into its breaker.
func (c *CircuitManager) Record(id string, success bool) {
	c.get(id).Record(success)
}

// State returns id's current circuit state (closed if never recorded).
func (c *CircuitManager) State(id string) CircuitState {
	return c.get(id).State()
}

// Quarantine tracks per-server crash timestamps and enforces the
// quarantine window (§4.7.2).
type Quarantine struct {
	mu            sync.Mutex
	crashes       map[string][]time.Time
	quarantinedAt map[string]time.Time
	crashWindow   time.Duration
	maxCrashes    int
	duration      time.Duration
}

// NewQuarantine constructs a crash tracker with the given window/threshold/duration.
func NewQuarantine(crashWindow time.Duration, maxCrashes int, duration time.Duration) *Quarantine {
	return &Quarantine{
		crashes:       make(map[string][]time.Time),
		quarantinedAt: make(map[string]time.Time),
		crashWindow:   crashWindow,
		maxCrashes:    maxCrashes,
		duration:      duration,
	}
}

// RecordCrash records a transition-to-error crash and quarantines the
// server if the crash count within crashWindow reaches maxCrashes.
func (q *Quarantine) RecordCrash(id string, now time.Time) (quarantined bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := now.Add(-q.crashWindow)
	kept := q.crashes[id][:0]
	for _, t := range q.crashes[id] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	q.crashes[id] = kept

	if len(kept) >= q.maxCrashes {
		q.quarantinedAt[id] = now
		return true
	}
	return false
}

// IsQuarantined reports whether id is currently quarantined, auto-expiring
// the quarantine once duration has elapsed.
func (q *Quarantine) IsQuarantined(id string, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	at, ok := q.quarantinedAt[id]
	if !ok {
		return false
	}
	if now.Sub(at) >= q.duration {
		delete(q.quarantinedAt, id)
		return false
	}
	return true
}

// Release manually ends a server's quarantine ahead of schedule.
func (q *Quarantine) Release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.quarantinedAt, id)
	q.crashes[id] = nil
}
