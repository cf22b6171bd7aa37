// Package monitor runs the scan, analyze, alert and store cycle over the
// configured grant sources.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/db"
	"github.com/david/eu-grants-monitor/internal/metrics"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/notify"
	"github.com/david/eu-grants-monitor/internal/scoring"
)

var ErrCycleRunning = errors.New("monitoring cycle already running")

// highPriorityMark is the fixed cut used for the session summary; alerting
// uses the configured threshold.
const highPriorityMark = 70.0

type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateAnalyzing State = "analyzing"
	StateAlerting  State = "alerting"
	StateStoring   State = "storing"
)

type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Grant, error)
}

type Notifier interface {
	Notify(ctx context.Context, alerts []models.Alert) error
}

// Store is the persistence the cycle writes to. A nil store skips Storing.
type Store interface {
	UpsertGrants(ctx context.Context, grants []models.Grant) (db.UpsertResult, error)
	SaveScrapingSession(ctx context.Context, s models.ScrapingSession) error
	SaveAlerts(ctx context.Context, alerts []models.Alert) error
	SaveMonitoringSession(ctx context.Context, s models.MonitoringSession) error
}

type Options struct {
	Sources  []Source
	Notifier Notifier
	Store    Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

type Monitor struct {
	sources  []Source
	notifier Notifier
	store    Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	matching scoring.Matching
	weights  scoring.Weights
	alerts   config.AlertsConfig

	mu      sync.Mutex
	state   State
	running bool
	last    *CycleReport
}

func New(cfg config.Config, opts Options) *Monitor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Monitor{
		sources:  opts.Sources,
		notifier: opts.Notifier,
		store:    opts.Store,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("component", "monitor"),
		now:      opts.Now,
		matching: cfg.Matching,
		weights:  cfg.Scoring.Weights,
		alerts:   cfg.Alerts,
		state:    StateIdle,
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastReport returns the report of the most recent finished cycle.
func (m *Monitor) LastReport() (CycleReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return CycleReport{}, false
	}
	return *m.last, true
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.logger.Debug("state_change", "state", string(s))
}

// SourceResult is what one source contributed to a cycle.
type SourceResult struct {
	Source string `json:"source"`
	Grants int    `json:"grants"`
	Error  string `json:"error,omitempty"`
}

type CycleReport struct {
	SessionID         uuid.UUID            `json:"session_id"`
	Status            models.SessionStatus `json:"status"`
	StartedAt         time.Time            `json:"started_at"`
	CompletedAt       time.Time            `json:"completed_at"`
	Sources           []SourceResult       `json:"sources"`
	GrantsFound       int                  `json:"grants_found"`
	GrantsProcessed   int                  `json:"grants_processed"`
	HighPriorityCount int                  `json:"high_priority_count"`
	AvgRelevance      float64              `json:"avg_relevance"`
	AvgComplexity     float64              `json:"avg_complexity"`
	AlertsSent        int                  `json:"alerts_sent"`
	Alerts            []models.Alert       `json:"alerts"`
	Errors            []string             `json:"errors,omitempty"`
	Stored            db.UpsertResult      `json:"stored"`
	Grants            []models.Grant       `json:"grants"`
}

// Session converts the report into the stored summary row.
func (r CycleReport) Session() models.MonitoringSession {
	return models.MonitoringSession{
		ID:                r.SessionID,
		GrantsProcessed:   r.GrantsProcessed,
		HighPriorityCount: r.HighPriorityCount,
		AvgRelevance:      r.AvgRelevance,
		AvgComplexity:     r.AvgComplexity,
		AlertsSent:        r.AlertsSent,
		Errors:            len(r.Errors),
		Status:            r.Status,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
	}
}

// RunCycle runs one full cycle for the given profile. Source, analysis,
// alerting and storage failures are recorded in the report; only an invalid
// profile, a concurrent cycle or a cancelled context return an error.
func (m *Monitor) RunCycle(ctx context.Context, profile models.BusinessProfile) (CycleReport, error) {
	if err := profile.Validate(); err != nil {
		return CycleReport{}, err
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return CycleReport{}, ErrCycleRunning
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.state = StateIdle
		m.running = false
		m.mu.Unlock()
	}()

	report := CycleReport{
		SessionID: uuid.New(),
		Status:    models.SessionRunning,
		StartedAt: m.now(),
	}
	m.logger.Info("cycle_started", "session_id", report.SessionID, "company", profile.CompanyName)

	err := m.runPhases(ctx, profile, &report)

	report.CompletedAt = m.now()
	report.Status = models.SessionCompleted
	if err != nil {
		report.Status = models.SessionFailed
	}
	m.metrics.RecordCycle(report.CompletedAt.Sub(report.StartedAt), report.GrantsProcessed, report.HighPriorityCount, err)
	m.logger.Info("cycle_finished",
		"session_id", report.SessionID,
		"status", string(report.Status),
		"grants_processed", report.GrantsProcessed,
		"high_priority", report.HighPriorityCount,
		"alerts_sent", report.AlertsSent,
		"errors", len(report.Errors),
	)

	m.mu.Lock()
	last := report
	m.last = &last
	m.mu.Unlock()

	return report, err
}

func (m *Monitor) runPhases(ctx context.Context, profile models.BusinessProfile, report *CycleReport) error {
	m.setState(StateScanning)
	grants, scans := m.scan(ctx, report)
	if err := ctx.Err(); err != nil {
		return err
	}

	m.setState(StateAnalyzing)
	grants = m.analyze(grants, profile, report)
	report.Grants = grants
	m.summarize(report)
	if err := ctx.Err(); err != nil {
		return err
	}

	m.setState(StateAlerting)
	m.alert(ctx, report)
	if err := ctx.Err(); err != nil {
		return err
	}

	m.setState(StateStoring)
	m.persist(ctx, report, scans)
	return ctx.Err()
}

// scan collects grants from every source, keeping the first grant seen for
// each id.
func (m *Monitor) scan(ctx context.Context, report *CycleReport) ([]models.Grant, []models.ScrapingSession) {
	var (
		grants []models.Grant
		scans  []models.ScrapingSession
		seen   = map[string]bool{}
	)
	for _, src := range m.sources {
		if ctx.Err() != nil {
			break
		}
		started := m.now()
		found, err := fetch(ctx, src)
		completed := m.now()

		result := SourceResult{Source: src.Name(), Grants: len(found)}
		session := models.ScrapingSession{
			ID:          uuid.New(),
			Source:      src.Name(),
			StartedAt:   started,
			CompletedAt: &completed,
			GrantsFound: len(found),
			Status:      models.SessionCompleted,
		}
		m.metrics.RecordSource(src.Name(), len(found), err)

		if err != nil {
			m.logger.Error("source_failed", "source", src.Name(), "error", err)
			result.Error = err.Error()
			session.Status = models.SessionFailed
			session.ErrorMessage = err.Error()
			report.Errors = append(report.Errors, fmt.Sprintf("source %s: %v", src.Name(), err))
			report.Sources = append(report.Sources, result)
			scans = append(scans, session)
			continue
		}

		for _, g := range found {
			if g.ID == "" || seen[g.ID] {
				continue
			}
			seen[g.ID] = true
			grants = append(grants, g)
		}
		m.logger.Info("source_scanned", "source", src.Name(), "grants", len(found))
		report.Sources = append(report.Sources, result)
		scans = append(scans, session)
	}
	report.GrantsFound = len(grants)
	return grants, scans
}

// fetch turns a panicking source into that source's error.
func fetch(ctx context.Context, src Source) (grants []models.Grant, err error) {
	defer func() {
		if r := recover(); r != nil {
			grants, err = nil, fmt.Errorf("source panic: %v", r)
		}
	}()
	return src.Fetch(ctx)
}

// analyze scores every grant. A grant that cannot be scored is logged and
// dropped; the rest are returned sorted by priority.
func (m *Monitor) analyze(grants []models.Grant, profile models.BusinessProfile, report *CycleReport) []models.Grant {
	now := m.now()
	out := make([]models.Grant, 0, len(grants))
	for _, g := range grants {
		if err := m.scoreGrant(&g, profile, now); err != nil {
			m.logger.Warn("grant_analysis_failed", "grant_id", g.ID, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("grant %s: %v", g.ID, err))
			continue
		}
		out = append(out, g)
	}
	scoring.SortByPriority(out)
	return out
}

func (m *Monitor) scoreGrant(g *models.Grant, profile models.BusinessProfile, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panic: %v", r)
		}
	}()

	if math.IsNaN(g.FundingAmount) || math.IsInf(g.FundingAmount, 0) || g.FundingAmount < 0 {
		return fmt.Errorf("invalid funding amount %v", g.FundingAmount)
	}
	scoring.ScoreGrant(g, profile, m.matching, m.weights, now)
	for _, v := range []float64{g.RelevanceScore, g.ComplexityScore, g.PriorityScore} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("score is not a finite number")
		}
	}
	return nil
}

func (m *Monitor) summarize(report *CycleReport) {
	report.GrantsProcessed = len(report.Grants)
	if report.GrantsProcessed == 0 {
		return
	}
	var relevance, complexity float64
	for _, g := range report.Grants {
		relevance += g.RelevanceScore
		complexity += g.ComplexityScore
		if g.PriorityScore >= highPriorityMark {
			report.HighPriorityCount++
		}
	}
	n := float64(report.GrantsProcessed)
	report.AvgRelevance = relevance / n
	report.AvgComplexity = complexity / n
}

// alert sends high-priority alerts for grants at or above the configured
// threshold and deadline warnings for grants whose remaining days match one of
// the warning marks.
func (m *Monitor) alert(ctx context.Context, report *CycleReport) {
	now := m.now()
	var alerts []models.Alert
	for _, g := range report.Grants {
		if g.PriorityScore >= m.alerts.PriorityThreshold {
			alerts = append(alerts, models.NewAlert(g, models.AlertHighPriority, notify.FormatAlertMessage(g), now))
		}
		days := g.DaysUntilDeadline(now)
		if slices.Contains(m.alerts.DeadlineWarningDays, days) {
			alerts = append(alerts, models.NewAlert(g, models.AlertDeadlineWarning, notify.FormatDeadlineMessage(g, days), now))
		}
	}
	report.Alerts = alerts
	if len(alerts) == 0 || m.notifier == nil {
		return
	}

	err := m.notifier.Notify(ctx, alerts)
	for _, a := range alerts {
		m.metrics.RecordAlert(string(a.Type), err)
	}
	if err != nil {
		m.logger.Error("alert_delivery_failed", "alerts", len(alerts), "error", err)
		report.Errors = append(report.Errors, fmt.Sprintf("alerting: %v", err))
		return
	}
	report.AlertsSent = len(alerts)
}

func (m *Monitor) persist(ctx context.Context, report *CycleReport, scans []models.ScrapingSession) {
	if m.store == nil {
		return
	}
	fail := func(step string, err error) {
		m.logger.Error("store_failed", "step", step, "error", err)
		report.Errors = append(report.Errors, fmt.Sprintf("storing %s: %v", step, err))
	}

	stored, err := m.store.UpsertGrants(ctx, report.Grants)
	if err != nil {
		fail("grants", err)
	}
	report.Stored = stored

	for _, s := range scans {
		if err := m.store.SaveScrapingSession(ctx, s); err != nil {
			fail("scraping session", err)
		}
	}
	if err := m.store.SaveAlerts(ctx, report.Alerts); err != nil {
		fail("alerts", err)
	}

	session := report.Session()
	session.Status = models.SessionCompleted
	session.CompletedAt = m.now()
	if err := m.store.SaveMonitoringSession(ctx, session); err != nil {
		fail("monitoring session", err)
	}
}
