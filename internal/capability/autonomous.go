package capability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"cogcore/internal/logging"
)

// HealthScore is the weighted [0,1] fitness of a server (§4.7.2).
func HealthScore(uptime time.Duration, totalCalls, totalErrors int64, avgLatencyMs float64) float64 {
	uptimeScore := uptime.Hours() / 24
	if uptimeScore > 1 {
		uptimeScore = 1
	}
	successRate := 1.0
	if totalCalls > 0 {
		successRate = 1 - float64(totalErrors)/float64(totalCalls)
	}
	latencyScore := 1 / (1 + avgLatencyMs/1000)

	score := 0.4*uptimeScore + 0.3*successRate + 0.3*latencyScore
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// DiscoveredTool is surfaced to a SkillGeneratorCallback after auto-discovery.
type DiscoveredTool struct {
	Name        string
	Description string
	InputSchema []byte
}

// SkillGeneratorCallback receives newly discovered tools (§4.7.2).
type SkillGeneratorCallback func(tools []DiscoveredTool)

// metrics are the Prometheus collectors the manager exposes for operators.
type metrics struct {
	healthScore   *prometheus.GaugeVec
	circuitState  *prometheus.GaugeVec
	quarantined   *prometheus.GaugeVec
	restartsTotal *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		healthScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cogcore_capability_health_score",
			Help: "Weighted health score of a remote capability server, in [0,1].",
		}, []string{"server_id"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cogcore_capability_circuit_state",
			Help: "Circuit breaker state per server (0=closed, 1=half-open, 2=open).",
		}, []string{"server_id"}),
		quarantined: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cogcore_capability_quarantined",
			Help: "1 if the server is currently quarantined, else 0.",
		}, []string{"server_id"}),
		restartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cogcore_capability_restarts_total",
			Help: "Total auto-restart attempts per server.",
		}, []string{"server_id"}),
	}
	if reg != nil {
		reg.MustRegister(m.healthScore, m.circuitState, m.quarantined, m.restartsTotal)
	}
	return m
}

func circuitStateValue(s CircuitState) float64 {
	switch s {
	case CircuitHalfOpen:
		return 1
	case CircuitOpen:
		return 2
	default:
		return 0
	}
}

// Manager is the autonomous layer wrapping a Registry: health scoring,
// circuit breaking, quarantine, target selection, and background
// health-check / auto-discovery loops (§4.7.2). It never touches per-call
// transport directly.
type Manager struct {
	registry   *Registry
	circuits   *CircuitManager
	quarantine *Quarantine
	metrics    *metrics

	healthCheckInterval time.Duration
	healthCheckTimeout  time.Duration
	maxConsecutiveFails int
	maxRestarts         int
	restartBackoffCap   time.Duration
	discoveryInterval   time.Duration
	discoveryDirs       []string

	mu             sync.Mutex
	restartAttempts map[string]int
	roundRobinTick  int

	onDiscoveredTools SkillGeneratorCallback

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// ManagerConfig mirrors cogcore/internal/config.CapabilityConfig to avoid an
// import-cycle-prone dependency on the config package itself.
type ManagerConfig struct {
	HealthCheckInterval    time.Duration
	HealthCheckTimeout     time.Duration
	MaxConsecutiveFailures int
	MaxRestarts            int
	RestartBackoffCap      time.Duration
	CircuitFailureWindow   time.Duration
	CircuitFailureThresh   int
	CircuitCooldown        time.Duration
	CrashWindow            time.Duration
	MaxCrashes             int
	QuarantineDuration     time.Duration
	DiscoveryInterval      time.Duration
	DiscoveryDirs          []string
}

// NewManager constructs the autonomous manager around an existing registry.
// reg may be nil to skip Prometheus registration (e.g. in tests).
func NewManager(registry *Registry, cfg ManagerConfig, reg prometheus.Registerer) *Manager {
	return &Manager{
		registry:            registry,
		circuits:            NewCircuitManager(cfg.CircuitFailureThresh, cfg.CircuitFailureWindow, cfg.CircuitCooldown),
		quarantine:          NewQuarantine(cfg.CrashWindow, cfg.MaxCrashes, cfg.QuarantineDuration),
		metrics:             newMetrics(reg),
		healthCheckInterval: cfg.HealthCheckInterval,
		healthCheckTimeout:  cfg.HealthCheckTimeout,
		maxConsecutiveFails: cfg.MaxConsecutiveFailures,
		maxRestarts:         cfg.MaxRestarts,
		restartBackoffCap:   cfg.RestartBackoffCap,
		discoveryInterval:   cfg.DiscoveryInterval,
		discoveryDirs:       cfg.DiscoveryDirs,
		restartAttempts:     make(map[string]int),
		stopCh:              make(chan struct{}),
	}
}

// OnToolsDiscovered sets the auto-discovery callback.
func (m *Manager) OnToolsDiscovered(fn SkillGeneratorCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDiscoveredTools = fn
}

// RecordCall reports a completed call's outcome for server id into both the
// registry's statistics and the circuit breaker.
func (m *Manager) RecordCall(id string, success bool, latencyMs float64) {
	m.registry.RecordCall(id, success, latencyMs)
	m.circuits.Record(id, success)
	m.refreshGauges(id)
}

// ScoreOf computes the current health score for server id.
func (m *Manager) ScoreOf(id string) float64 {
	info, ok := m.registry.Get(id)
	if !ok {
		return 0
	}
	uptime := info.Stats.Uptime(info.State, time.Now())
	return HealthScore(uptime, info.Stats.TotalCalls, info.Stats.TotalErrors, info.Stats.AverageLatencyMs)
}

// SelectTarget picks among candidate server ids providing the same
// capability, filtering quarantined and open-circuit servers, preferring a
// half-open probe, then round-robinning near-tied leaders (§4.7.2).
func (m *Manager) SelectTarget(candidates []string) (string, bool) {
	now := time.Now()
	type scored struct {
		id    string
		score float64
		state CircuitState
	}
	var eligible []scored
	for _, id := range candidates {
		if m.quarantine.IsQuarantined(id, now) {
			continue
		}
		state := m.circuits.State(id)
		if state == CircuitOpen {
			continue
		}
		if state == CircuitHalfOpen {
			return id, true
		}
		eligible = append(eligible, scored{id: id, score: m.ScoreOf(id), state: state})
	}
	if len(eligible) == 0 {
		return "", false
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].score > eligible[j].score })

	leader := eligible[0].score
	var tied []scored
	for _, e := range eligible {
		if leader-e.score <= 0.1 {
			tied = append(tied, e)
		}
	}
	if len(tied) == 1 {
		return tied[0].id, true
	}

	m.mu.Lock()
	idx := int(now.Unix()) % len(tied)
	m.roundRobinTick++
	m.mu.Unlock()
	return tied[idx].id, true
}

// ObserveStateTransition feeds a registry state transition into the
// quarantine tracker and schedules a backoff restart when entering error.
func (m *Manager) ObserveStateTransition(id string, to State) {
	if to != StateError {
		return
	}
	quarantined := m.quarantine.RecordCrash(id, time.Now())
	m.refreshGauges(id)
	if quarantined {
		logging.Capability("server %s quarantined after repeated crashes", id)
		_ = m.registry.Transition(id, StateStopping)
		_ = m.registry.Transition(id, StateStopped)
		return
	}
	m.scheduleRestart(id)
}

func (m *Manager) scheduleRestart(id string) {
	m.mu.Lock()
	attempts := m.restartAttempts[id]
	if attempts >= m.maxRestarts {
		m.mu.Unlock()
		logging.CapabilityDebug("server %s exceeded max restarts (%d), giving up", id, m.maxRestarts)
		return
	}
	m.restartAttempts[id] = attempts + 1
	m.mu.Unlock()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = m.restartBackoffCap
	bo.MaxElapsedTime = 0
	var delay time.Duration
	for i := 0; i <= attempts; i++ {
		delay = bo.NextBackOff()
	}
	if delay > m.restartBackoffCap {
		delay = m.restartBackoffCap
	}

	m.metrics.restartsTotal.WithLabelValues(id).Inc()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-time.After(delay):
		case <-m.stopCh:
			return
		}
		if err := m.registry.Transition(id, StateRestarting); err != nil {
			logging.CapabilityDebug("restart of %s blocked: %v", id, err)
			return
		}
		_ = m.registry.Transition(id, StateStarting)
	}()
}

// ReleaseQuarantine manually ends a server's quarantine and restarts it.
func (m *Manager) ReleaseQuarantine(id string) {
	m.quarantine.Release(id)
	m.refreshGauges(id)
	if err := m.registry.Transition(id, StateIdle); err == nil {
		_ = m.registry.Transition(id, StateStarting)
	}
}

func (m *Manager) refreshGauges(id string) {
	m.metrics.healthScore.WithLabelValues(id).Set(m.ScoreOf(id))
	m.metrics.circuitState.WithLabelValues(id).Set(circuitStateValue(m.circuits.State(id)))
	quarantinedVal := 0.0
	if m.quarantine.IsQuarantined(id, time.Now()) {
		quarantinedVal = 1.0
	}
	m.metrics.quarantined.WithLabelValues(id).Set(quarantinedVal)
}

// HealthCheckOne pings a single server within the configured timeout and
// records the outcome, triggering the failure/restart path at
// maxConsecutiveFails (§4.7.1).
func (m *Manager) HealthCheckOne(parent context.Context, id string) {
	info, ok := m.registry.Get(id)
	if !ok || info.Transport == nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, m.healthCheckTimeout)
	defer cancel()

	err := info.Transport.Ping(ctx)
	m.registry.RecordHealthCheck(id, err == nil)
	m.refreshGauges(id)

	if err == nil {
		return
	}
	updated, ok := m.registry.Get(id)
	if !ok || updated.Stats.ConsecutiveFailures < m.maxConsecutiveFails {
		return
	}
	logging.Capability("server %s failed %d consecutive health checks", id, updated.Stats.ConsecutiveFailures)
	if transErr := m.registry.Transition(id, StateError); transErr == nil {
		m.ObserveStateTransition(id, StateError)
	}
}

// Run starts the background health-check and auto-discovery loops. It
// blocks until ctx is cancelled or Stop is called.
func (m *Manager) Run(ctx context.Context) {
	m.wg.Add(2)
	go m.healthCheckLoop(ctx)
	go m.discoveryLoop(ctx)
	select {
	case <-ctx.Done():
	case <-m.stopCh:
	}
	m.Stop()
}

// Stop terminates the background loops and waits for in-flight restarts.
func (m *Manager) Stop() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	m.wg.Wait()
}

func (m *Manager) healthCheckLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			for _, info := range m.registry.List() {
				if info.State == StateReady {
					m.HealthCheckOne(ctx, info.ID)
				}
			}
		}
	}
}

// discoveryLoop ticks every discoveryInterval and calls runDiscovery, which
// only logs how many directories are configured: it reads no directory and
// adds nothing to the registry. New config files are integrated only through
// DiscoveryWatcher's fsnotify events.
func (m *Manager) discoveryLoop(ctx context.Context) {
	defer m.wg.Done()
	if m.discoveryInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.discoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runDiscovery()
		}
	}
}

func (m *Manager) runDiscovery() {
	logging.CapabilityDebug("auto-discovery scan of %d directories", len(m.discoveryDirs))
}
