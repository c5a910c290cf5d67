package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"cogcore/internal/bridge"
	"cogcore/internal/capability"
	"cogcore/internal/chetana"
	"cogcore/internal/config"
	"cogcore/internal/dharma"
	"cogcore/internal/embedding"
	"cogcore/internal/jobqueue"
	"cogcore/internal/logging"
	"cogcore/internal/nidra"
	"cogcore/internal/recall"
	"cogcore/internal/sabha"
	"cogcore/internal/session"
	"cogcore/internal/store"
)

// app holds every component wired together for a single cogcore process,
// mirroring the way the teacher's chat.Config bundles its subsystems for
// the interactive session.
type app struct {
	cfg *config.Config

	idx     *store.Store
	session *session.Store

	vector *recall.VectorIndex
	graph  *recall.GraphRetriever
	hybrid *recall.Engine

	nidraDaemon *nidra.Daemon
	chitragupta *nidra.Chitragupta

	chetana *chetana.Controller

	policy   *dharma.Engine
	approval *dharma.ApprovalGate

	jobs *jobqueue.Queue

	registry   *capability.Registry
	discovery  *capability.DiscoveryWatcher
	autonomous *capability.Manager

	sabha *sabha.Registry

	bridge *bridge.Bridge
}

// newApp constructs every component named in the module layout, in
// dependency order: store first (everything else reads or writes through
// it), then the subsystems that depend on it, then the bridge tying them
// together for turn recording.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := logging.Configure(cfg.Home, logging.Config{
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	}); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	idx, err := store.Open(ctx, cfg.Home, cfg.Store.SessionsDBPath, cfg.Store.VectorsDBPath, cfg.Store.AgentDBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sessions := session.New(cfg.Home, idx)

	embEngine := embedding.NewHashEngine(256)
	vector := recall.NewVectorIndex(idx, embEngine)
	graph := recall.NewGraphRetriever(idx, 2, 50)
	hybridWeights := recall.HybridWeights{
		Lexical: cfg.Recall.HybridWeightLex,
		Vector:  cfg.Recall.HybridWeightVector,
		Graph:   cfg.Recall.HybridWeightGraph,
	}
	hybrid, err := recall.NewEngine(idx, vector, graph, hybridWeights, cfg.Recall.AnswerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("build hybrid recall engine: %w", err)
	}

	chitragupta := nidra.NewChitragupta(cfg.Home, idx, sessions, nidra.Config{
		IdleThreshold:      cfg.Nidra.IdleThreshold,
		HeartbeatInterval:  cfg.Nidra.HeartbeatInterval,
		BackfillOnStartup:  cfg.Nidra.BackfillOnStartup,
		MaxBackfillDays:    cfg.Nidra.MaxBackfillDays,
		RetentionMonths:    cfg.Nidra.RetentionMonths,
		DailyConsolidation: cfg.Nidra.DailyConsolidation,
		MonthlyReport:      cfg.Nidra.MonthlyReport,
		YearlyReport:       cfg.Nidra.YearlyReport,
	})
	dreamer := chitragupta.Nidra()

	chetanaController := chetana.NewController(cfg.Chetana)

	policy := dharma.NewEngine(cfg.Dharma.PermissiveOnRuleError)
	policy.AddSet(dharma.SkillSecuritySet(cfg.Dharma.SkillStagingDir))
	approval := dharma.NewApprovalGate(cfg.Dharma.ApprovalMaxPending, cfg.Dharma.ApprovalDefaultTTL)

	jobs := jobqueue.New(jobRunner(), cfg.JobQueue.MaxConcurrent, cfg.JobQueue.MaxQueueSize, cfg.JobQueue.MaxEventsPerJob)

	registry := capability.NewRegistry()
	managerCfg := capability.ManagerConfig{
		HealthCheckInterval:    cfg.Capability.HealthCheckInterval,
		HealthCheckTimeout:     cfg.Capability.HealthCheckTimeout,
		MaxConsecutiveFailures: cfg.Capability.MaxConsecutiveFailures,
		MaxRestarts:            cfg.Capability.MaxRestarts,
		RestartBackoffCap:      cfg.Capability.RestartBackoffCap,
		CircuitFailureWindow:   cfg.Capability.CircuitFailureWindow,
		CircuitFailureThresh:   cfg.Capability.CircuitFailureThresh,
		CircuitCooldown:        cfg.Capability.CircuitCooldown,
		CrashWindow:            cfg.Capability.CrashWindow,
		MaxCrashes:             cfg.Capability.MaxCrashes,
		QuarantineDuration:     cfg.Capability.QuarantineDuration,
		DiscoveryInterval:      cfg.Capability.DiscoveryInterval,
		DiscoveryDirs:          cfg.Capability.DiscoveryDirs,
	}
	autonomous := capability.NewManager(registry, managerCfg, prometheus.DefaultRegisterer)

	var discovery *capability.DiscoveryWatcher
	if len(cfg.Capability.DiscoveryDirs) > 0 {
		discovery, err = capability.NewDiscoveryWatcher(registry, autonomous, cfg.Capability.DiscoveryDirs)
		if err != nil {
			return nil, fmt.Errorf("start discovery watcher: %w", err)
		}
	}

	sabhaRegistry := sabha.NewRegistry()

	b := bridge.New(cfg.Home, sessions, hybrid, vector, graph, dreamer, cfg.Bridge)

	return &app{
		cfg:         cfg,
		idx:         idx,
		session:     sessions,
		vector:      vector,
		graph:       graph,
		hybrid:      hybrid,
		nidraDaemon: dreamer,
		chitragupta: chitragupta,
		chetana:     chetanaController,
		policy:      policy,
		approval:    approval,
		jobs:        jobs,
		registry:    registry,
		discovery:   discovery,
		autonomous:  autonomous,
		sabha:       sabhaRegistry,
		bridge:      b,
	}, nil
}

// jobRunner adapts a free-standing request string into a job result,
// grounded on the teacher's tool-execution closures: a job here simply
// means "run recall/consolidation work off the turn path," so the runner
// is intentionally minimal until a concrete long-running operation needs
// queuing.
func jobRunner() jobqueue.Runner {
	return func(ctx context.Context, message string, emit func(eventType string, data interface{})) (interface{}, error) {
		emit("started", message)
		emit("completed", message)
		return message, nil
	}
}

func (a *app) Close() error {
	if a.discovery != nil {
		a.discovery.Stop()
	}
	if a.autonomous != nil {
		a.autonomous.Stop()
	}
	a.chitragupta.Stop()
	a.jobs.Destroy()
	a.approval.Destroy()
	logging.CloseAll()
	return a.idx.Close()
}

func defaultConfigPath(home string) string {
	return filepath.Join(home, "config.yaml")
}
