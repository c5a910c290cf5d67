package nidra

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"cogcore/internal/logging"
	"cogcore/internal/session"
	"cogcore/internal/store"
)

// ConsolidationResult is the stats yielded by consolidating a single date
// (§4.3.2 step 1).
type ConsolidationResult struct {
	Date              time.Time
	SessionsProcessed int
	ProjectCount      int
	ExtractedFacts    int
	DurationMillis    int64
}

// Chitragupta is the calendar-aware orchestrator wrapping a Nidra daemon: it
// wires on-dream to a same-day consolidation and runs three long-lived cron
// schedules: the daily one consolidates, while the monthly and yearly ones
// only log that they fired.
type Chitragupta struct {
	home     string
	idx      *store.Store
	sessions *session.Store
	nidra    *Daemon

	idleThreshold     time.Duration
	backfillOnStartup bool
	maxBackfillDays   int
	retentionMonths   int
	dailyCron         string
	monthlyCron       string
	yearlyCron        string

	cron *cron.Cron

	consolidating int32 // atomic guard, §4.3.2 concurrency rule
	mu            sync.Mutex
	lastResult    ConsolidationResult

	stopCtx    context.Context
	stopCancel context.CancelFunc
}

// Config bundles the Chitragupta-relevant slice of NidraConfig so this
// package does not import internal/config directly.
type Config struct {
	IdleThreshold      time.Duration
	HeartbeatInterval  time.Duration
	BackfillOnStartup  bool
	MaxBackfillDays    int
	RetentionMonths    int
	DailyConsolidation string
	MonthlyReport      string
	YearlyReport       string
}

// NewChitragupta constructs the orchestrator and its wrapped Nidra daemon.
func NewChitragupta(home string, idx *store.Store, sessions *session.Store, cfg Config) *Chitragupta {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Chitragupta{
		home:              home,
		idx:               idx,
		sessions:          sessions,
		nidra:             New(idx, cfg.IdleThreshold, cfg.HeartbeatInterval),
		idleThreshold:     cfg.IdleThreshold,
		backfillOnStartup: cfg.BackfillOnStartup,
		maxBackfillDays:   cfg.MaxBackfillDays,
		retentionMonths:   cfg.RetentionMonths,
		dailyCron:         cfg.DailyConsolidation,
		monthlyCron:       cfg.MonthlyReport,
		yearlyCron:        cfg.YearlyReport,
		cron:              cron.New(),
		stopCtx:           ctx,
		stopCancel:        cancel,
	}
	c.nidra.OnDream(c.onDream)
	return c
}

// onDream is the Nidra on-dream handler: it consolidates today.
func (c *Chitragupta) onDream(ctx context.Context, report ProgressFunc) error {
	_, err := c.ConsolidateDate(ctx, time.Now().UTC())
	return err
}

// Start restores Nidra's persisted state, launches its loop, registers the
// three cron schedules, and runs startup backfill if configured.
func (c *Chitragupta) Start(ctx context.Context) error {
	if err := c.nidra.Restore(ctx); err != nil {
		return err
	}
	c.nidra.Start(ctx)

	if _, err := c.cron.AddFunc(c.dailyCron, func() {
		if _, err := c.ConsolidateDate(c.stopCtx, time.Now().UTC()); err != nil {
			logging.Get(logging.CategoryNidra).Error("daily consolidation failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("nidra: schedule daily consolidation: %w", err)
	}
	if _, err := c.cron.AddFunc(c.monthlyCron, func() {
		logging.Nidra("monthly report cron fired")
	}); err != nil {
		return fmt.Errorf("nidra: schedule monthly report: %w", err)
	}
	if _, err := c.cron.AddFunc(c.yearlyCron, func() {
		logging.Nidra("yearly report cron fired")
	}); err != nil {
		return fmt.Errorf("nidra: schedule yearly report: %w", err)
	}
	c.cron.Start()

	if c.backfillOnStartup {
		if err := c.BackfillMissedDays(ctx, c.maxBackfillDays); err != nil {
			logging.Get(logging.CategoryNidra).Error("backfill failed: %v", err)
		}
	}
	return nil
}

// Stop halts the cron schedules and Nidra, performing a best-effort
// today-consolidation first (§4.3.2).
func (c *Chitragupta) Stop() {
	cronCtx := c.cron.Stop()
	<-cronCtx.Done()

	if _, err := c.ConsolidateDate(context.Background(), time.Now().UTC()); err != nil {
		logging.Get(logging.CategoryNidra).Error("best-effort shutdown consolidation failed: %v", err)
	}

	c.stopCancel()
	c.nidra.Stop()
}

// BackfillMissedDays runs consolidation for each of the last maxDays days
// that has no day file yet.
func (c *Chitragupta) BackfillMissedDays(ctx context.Context, maxDays int) error {
	now := time.Now().UTC()
	for i := 1; i <= maxDays; i++ {
		date := now.AddDate(0, 0, -i)
		path := dayFilePath(c.home, date)
		if fileExists(path) {
			continue
		}
		if _, err := c.ConsolidateDate(ctx, date); err != nil {
			return fmt.Errorf("nidra: backfill %s: %w", date.Format("2006-01-02"), err)
		}
	}
	return c.archiveOldDayFiles(now)
}

func (c *Chitragupta) archiveOldDayFiles(now time.Time) error {
	cutoff := now.AddDate(0, -c.retentionMonths, 0)
	for i := 0; i < c.retentionMonths*31+31; i++ {
		date := cutoff.AddDate(0, 0, -i)
		if err := archiveDayFile(c.home, date); err != nil {
			return err
		}
	}
	return nil
}

// ConsolidateDate runs the three-step consolidation for a single calendar
// date, short-circuiting if another consolidation is already in flight
// (§4.3.2 concurrency rule).
func (c *Chitragupta) ConsolidateDate(ctx context.Context, date time.Time) (ConsolidationResult, error) {
	if !atomic.CompareAndSwapInt32(&c.consolidating, 0, 1) {
		logging.NidraDebug("consolidation already in progress, short-circuiting")
		return ConsolidationResult{}, nil
	}
	defer atomic.StoreInt32(&c.consolidating, 0)

	start := time.Now()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := c.idx.SessionsUpdatedBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return ConsolidationResult{}, fmt.Errorf("nidra: list sessions for %s: %w", date.Format("2006-01-02"), err)
	}

	byProject := make(map[string][]string)
	for _, row := range rows {
		byProject[row.ProjectHash] = append(byProject[row.ProjectHash], row.ID)
	}

	projects := make([]string, 0, len(byProject))
	for p := range byProject {
		projects = append(projects, p)
	}
	sort.Strings(projects)

	projectFacts := make(map[string][]string, len(projects))
	extracted := 0
	for _, project := range projects {
		progress := func(phase string, pct float64) {
			logging.NidraDebug("svapna:%s pct=%.2f project=%s", phase, pct, project)
		}
		result, err := runSvapna(ctx, c.idx, c.sessions, c.home, project, byProject[project], progress)
		if err != nil {
			return ConsolidationResult{}, err
		}
		projectFacts[project] = result.Facts
		extracted += len(result.Facts)
	}

	if err := writeDayFile(c.home, date, projectFacts); err != nil {
		return ConsolidationResult{}, err
	}

	iso := date.Format("2006-01-02")
	for _, project := range projects {
		for _, fact := range projectFacts[project] {
			if err := store.RetryWithBackoff(ctx, func() error {
				return appendMemoryScope(c.home, "global", fmt.Sprintf("[%s] %s", iso, fact))
			}); err != nil {
				return ConsolidationResult{}, err
			}
		}
	}

	result := ConsolidationResult{
		Date:              date,
		SessionsProcessed: len(rows),
		ProjectCount:      len(projects),
		ExtractedFacts:    extracted,
		DurationMillis:    time.Since(start).Milliseconds(),
	}

	c.mu.Lock()
	c.lastResult = result
	c.mu.Unlock()

	logging.Nidra("consolidated %s: sessions=%d projects=%d facts=%d duration_ms=%d",
		iso, result.SessionsProcessed, result.ProjectCount, result.ExtractedFacts, result.DurationMillis)
	return result, nil
}

// LastResult returns the stats of the most recently completed consolidation.
func (c *Chitragupta) LastResult() ConsolidationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// Nidra exposes the wrapped daemon for callers that need raw phase/touch
// access (e.g. the bridge layer recording activity).
func (c *Chitragupta) Nidra() *Daemon {
	return c.nidra
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
