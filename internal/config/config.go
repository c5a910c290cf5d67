// Package config holds the runtime configuration for cogcore, loaded from a
// YAML file with documented defaults for every numeric threshold named in
// spec §4.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Home       string           `yaml:"home"`
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
	Recall     RecallConfig     `yaml:"recall"`
	Nidra      NidraConfig      `yaml:"nidra"`
	Chetana    ChetanaConfig    `yaml:"chetana"`
	Dharma     DharmaConfig     `yaml:"dharma"`
	JobQueue   JobQueueConfig   `yaml:"job_queue"`
	Capability CapabilityConfig `yaml:"capability"`
	Sabha      SabhaConfig      `yaml:"sabha"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	TLS        TLSConfig        `yaml:"tls"`
}

// LoggingConfig governs the internal/logging package.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// StoreConfig governs Component A (SQLite/FTS/vector substrate).
type StoreConfig struct {
	SessionsDBPath string `yaml:"sessions_db_path"`
	VectorsDBPath  string `yaml:"vectors_db_path"`
	AgentDBPath    string `yaml:"agent_db_path"`
}

// RecallConfig governs Component C.
type RecallConfig struct {
	DefaultTopK        int     `yaml:"default_top_k"`
	DefaultThreshold   float64 `yaml:"default_threshold"`
	ChunkSize          int     `yaml:"chunk_size"`
	ChunkOverlap       int     `yaml:"chunk_overlap"`
	AnswerCacheSize    int     `yaml:"answer_cache_size"`
	HybridWeightLex    float64 `yaml:"hybrid_weight_lexical"`
	HybridWeightVector float64 `yaml:"hybrid_weight_vector"`
	HybridWeightGraph  float64 `yaml:"hybrid_weight_graph"`
}

// NidraConfig governs Component D.
type NidraConfig struct {
	IdleThreshold      time.Duration `yaml:"idle_threshold"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	BackfillOnStartup  bool          `yaml:"backfill_on_startup"`
	MaxBackfillDays    int           `yaml:"max_backfill_days"`
	RetentionMonths    int           `yaml:"retention_months"`
	DailyConsolidation string        `yaml:"daily_consolidation_cron"`
	MonthlyReport      string        `yaml:"monthly_report_cron"`
	YearlyReport       string        `yaml:"yearly_report_cron"`
}

// ChetanaConfig governs Component E.
type ChetanaConfig struct {
	FrustrationPerError      float64       `yaml:"frustration_per_error"`
	FrustrationPerCorrection float64       `yaml:"frustration_per_correction"`
	FrustrationPerSuccess    float64       `yaml:"frustration_per_success"`
	FrustrationAlertThresh   float64       `yaml:"frustration_alert_threshold"`
	DecayRate                float64       `yaml:"decay_rate"`
	ConceptCap               int           `yaml:"concept_cap"`
	AttentionFocusWindow     int           `yaml:"attention_focus_window"`
	TrendLookback            int           `yaml:"trend_lookback"`
	TrendThreshold           float64       `yaml:"trend_threshold"`
	FailureStreakLimit       int           `yaml:"failure_streak_limit"`
	MaxLimitations           int           `yaml:"max_limitations"`
	CalibrationWindow        int           `yaml:"calibration_window"`
	DedupThreshold           float64       `yaml:"dedup_threshold"`
	KeywordMatchThreshold    int           `yaml:"keyword_match_threshold"`
	ProgressIncrement        float64       `yaml:"progress_increment"`
	GoalAbandonmentThreshold int           `yaml:"goal_abandonment_threshold"`
	MaxIntentions            int           `yaml:"max_intentions"`
	MaxEvidencePerIntention  int           `yaml:"max_evidence_per_intention"`
	MaxSteeringSuggestions   int           `yaml:"max_steering_suggestions"`
}

// DharmaConfig governs Component F.
type DharmaConfig struct {
	PermissiveOnRuleError bool          `yaml:"permissive_on_rule_error"`
	ApprovalDefaultTTL    time.Duration `yaml:"approval_default_ttl"`
	ApprovalMaxPending    int           `yaml:"approval_max_pending"`
	SkillStagingDir       string        `yaml:"skill_staging_dir"`
}

// JobQueueConfig governs Component G.
type JobQueueConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent"`
	MaxQueueSize      int `yaml:"max_queue_size"`
	MaxEventsPerJob   int `yaml:"max_events_per_job"`
}

// CapabilityConfig governs Component H.
type CapabilityConfig struct {
	HealthCheckInterval    time.Duration `yaml:"health_check_interval"`
	HealthCheckTimeout     time.Duration `yaml:"health_check_timeout"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	MaxRestarts            int           `yaml:"max_restarts"`
	RestartBackoffCap      time.Duration `yaml:"restart_backoff_cap"`
	CircuitFailureWindow   time.Duration `yaml:"circuit_failure_window"`
	CircuitFailureThresh   int           `yaml:"circuit_failure_threshold"`
	CircuitCooldown        time.Duration `yaml:"circuit_cooldown"`
	CrashWindow            time.Duration `yaml:"crash_window"`
	MaxCrashes             int           `yaml:"max_crashes"`
	QuarantineDuration     time.Duration `yaml:"quarantine_duration"`
	DiscoveryInterval      time.Duration `yaml:"discovery_interval"`
	DiscoveryDirs          []string      `yaml:"discovery_dirs"`
}

// SabhaConfig governs Component I.
type SabhaConfig struct {
	MaxParticipants     int     `yaml:"max_participants"`
	MaxRounds           int     `yaml:"max_rounds"`
	ConsensusThreshold  float64 `yaml:"consensus_threshold"`
	AutoEscalate        bool    `yaml:"auto_escalate"`
}

// BridgeConfig governs Component J.
type BridgeConfig struct {
	SubAgentFindingMaxChars int `yaml:"sub_agent_finding_max_chars"`
	StreamSnapshotMaxChars  int `yaml:"stream_snapshot_max_chars"`
}

// TLSConfig governs the §6.7 TLS shell wrapper.
type TLSConfig struct {
	StoreDir             string `yaml:"store_dir"`
	RenewalThresholdDays int    `yaml:"renewal_threshold_days"`
}

// DefaultConfig returns the documented defaults for every threshold named in
// §4.
func DefaultConfig(home string) *Config {
	return &Config{
		Home: home,
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
		Store: StoreConfig{
			SessionsDBPath: "sessions.db",
			VectorsDBPath:  "vectors.db",
			AgentDBPath:    "agent.db",
		},
		Recall: RecallConfig{
			DefaultTopK:        10,
			DefaultThreshold:   0.5,
			ChunkSize:          4000,
			ChunkOverlap:       500,
			AnswerCacheSize:    256,
			HybridWeightLex:    1.0,
			HybridWeightVector: 1.0,
			HybridWeightGraph:  1.0,
		},
		Nidra: NidraConfig{
			IdleThreshold:      10 * time.Minute,
			HeartbeatInterval:  5 * time.Second,
			BackfillOnStartup:  true,
			MaxBackfillDays:    30,
			RetentionMonths:    6,
			DailyConsolidation: "0 2 * * *",
			MonthlyReport:      "0 3 1 * *",
			YearlyReport:       "0 4 1 1 *",
		},
		Chetana: ChetanaConfig{
			FrustrationPerError:      0.15,
			FrustrationPerCorrection: 0.25,
			FrustrationPerSuccess:    0.1,
			FrustrationAlertThresh:   0.7,
			DecayRate:                0.1,
			ConceptCap:               100,
			AttentionFocusWindow:     5,
			TrendLookback:            5,
			TrendThreshold:           0.1,
			FailureStreakLimit:       3,
			MaxLimitations:           20,
			CalibrationWindow:        20,
			DedupThreshold:           0.5,
			KeywordMatchThreshold:    2,
			ProgressIncrement:        0.1,
			GoalAbandonmentThreshold: 5,
			MaxIntentions:            50,
			MaxEvidencePerIntention:  100,
			MaxSteeringSuggestions:   3,
		},
		Dharma: DharmaConfig{
			PermissiveOnRuleError: false,
			ApprovalDefaultTTL:    300 * time.Second,
			ApprovalMaxPending:    100,
			SkillStagingDir:       "skills/staging",
		},
		JobQueue: JobQueueConfig{
			MaxConcurrent:   16,
			MaxQueueSize:    256,
			MaxEventsPerJob: 200,
		},
		Capability: CapabilityConfig{
			HealthCheckInterval:    30 * time.Second,
			HealthCheckTimeout:     5 * time.Second,
			MaxConsecutiveFailures: 3,
			MaxRestarts:            5,
			RestartBackoffCap:      60 * time.Second,
			CircuitFailureWindow:   60 * time.Second,
			CircuitFailureThresh:   5,
			CircuitCooldown:        30 * time.Second,
			CrashWindow:            5 * time.Minute,
			MaxCrashes:             3,
			QuarantineDuration:     10 * time.Minute,
			DiscoveryInterval:      60 * time.Second,
		},
		Sabha: SabhaConfig{
			MaxParticipants:    7,
			MaxRounds:          3,
			ConsensusThreshold: 0.67,
			AutoEscalate:       true,
		},
		Bridge: BridgeConfig{
			SubAgentFindingMaxChars: 500,
			StreamSnapshotMaxChars:  2000,
		},
		TLS: TLSConfig{
			StoreDir:             "tls",
			RenewalThresholdDays: 30,
		},
	}
}

// Load reads a YAML config file and overlays it onto the defaults.
func Load(path string, home string) (*Config, error) {
	cfg := DefaultConfig(home)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config back to disk as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
