package db

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/david/eu-grants-monitor/internal/models"
)

var monitoringColumns = []string{
	"id", "grants_processed", "high_priority_count", "avg_relevance", "avg_complexity",
	"alerts_sent", "errors", "status", "started_at", "completed_at",
}

func (s *Store) SaveMonitoringSession(ctx context.Context, m models.MonitoringSession) error {
	query, args, err := s.sb.Insert("monitoring_sessions").Columns(monitoringColumns...).Values(
		m.ID.String(), m.GrantsProcessed, m.HighPriorityCount, m.AvgRelevance, m.AvgComplexity,
		m.AlertsSent, m.Errors, string(m.Status), m.StartedAt.UTC(), m.CompletedAt.UTC(),
	).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save monitoring session: %w", err)
	}
	return nil
}

// ListMonitoringSessions returns the most recent sessions first.
func (s *Store) ListMonitoringSessions(ctx context.Context, limit int) ([]models.MonitoringSession, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := s.sb.Select(monitoringColumns...).From("monitoring_sessions").
		OrderBy("completed_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.MonitoringSession{}
	for rows.Next() {
		var (
			m                  models.MonitoringSession
			status             string
			started, completed nullTime
		)
		if err := rows.Scan(&m.ID, &m.GrantsProcessed, &m.HighPriorityCount, &m.AvgRelevance, &m.AvgComplexity,
			&m.AlertsSent, &m.Errors, &status, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		m.Status = models.SessionStatus(status)
		m.StartedAt = started.Time
		m.CompletedAt = completed.Time
		sessions = append(sessions, m)
	}
	return sessions, rows.Err()
}

func (s *Store) SaveScrapingSession(ctx context.Context, ss models.ScrapingSession) error {
	query, args, err := s.sb.Insert("scraping_sessions").
		Columns("id", "source", "started_at", "completed_at", "grants_found", "grants_new",
			"grants_updated", "status", "error_message").
		Values(ss.ID.String(), ss.Source, ss.StartedAt.UTC(), timeArg(ss.CompletedAt), ss.GrantsFound,
			ss.GrantsNew, ss.GrantsUpdated, string(ss.Status), ss.ErrorMessage).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save scraping session: %w", err)
	}
	return nil
}

// SaveAlerts stores alerts in one insert statement.
func (s *Store) SaveAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	insert := s.sb.Insert("alerts").
		Columns("id", "grant_id", "alert_type", "message", "priority", "score", "sent_at")
	for _, a := range alerts {
		insert = insert.Values(a.ID.String(), a.GrantID, string(a.Type), a.Message, a.Priority, a.Score, a.SentAt.UTC())
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save alerts: %w", err)
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := s.sb.Select("id", "grant_id", "alert_type", "message", "priority", "score", "sent_at").
		From("alerts").OrderBy("sent_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var (
			a      models.Alert
			kind   string
			sentAt nullTime
		)
		if err := rows.Scan(&a.ID, &a.GrantID, &kind, &a.Message, &a.Priority, &a.Score, &sentAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Type = models.AlertType(kind)
		a.SentAt = sentAt.Time
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

type Stats struct {
	TotalGrants  int            `json:"total_grants"`
	HighPriority int            `json:"high_priority"`
	ExpiringSoon int            `json:"expiring_soon"`
	AvgRelevance float64        `json:"avg_relevance"`
	Programs     map[string]int `json:"programs"`
	Sessions     int            `json:"monitoring_sessions"`
	Alerts       int            `json:"alerts"`
	Applications int            `json:"applications"`
	LastCycleAt  *time.Time     `json:"last_cycle_at,omitempty"`
}

// GetStats aggregates dashboard counters. Expiring soon means a deadline in
// the next 30 days.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Programs: map[string]int{}}
	today := models.DateAfter(s.now(), 0)

	counts := []struct {
		dest  *int
		query sq.SelectBuilder
	}{
		{&stats.TotalGrants, s.sb.Select("COUNT(*)").From("grants")},
		{&stats.HighPriority, s.sb.Select("COUNT(*)").From("grants").Where(sq.GtOrEq{"priority_score": 70.0})},
		{&stats.ExpiringSoon, s.sb.Select("COUNT(*)").From("grants").
			Where(sq.And{sq.GtOrEq{"deadline": today}, sq.LtOrEq{"deadline": today.AddDate(0, 0, 30)}})},
		{&stats.Sessions, s.sb.Select("COUNT(*)").From("monitoring_sessions")},
		{&stats.Alerts, s.sb.Select("COUNT(*)").From("alerts")},
		{&stats.Applications, s.sb.Select("COUNT(*)").From("applications")},
	}
	for _, c := range counts {
		query, args, err := c.query.ToSql()
		if err != nil {
			return nil, err
		}
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	query, args, err := s.sb.Select("COALESCE(AVG(relevance_score), 0)").From("grants").ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.AvgRelevance); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	query, args, err = s.sb.Select("MAX(completed_at)").From("monitoring_sessions").ToSql()
	if err != nil {
		return nil, err
	}
	var last nullTime
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	stats.LastCycleAt = last.Ptr()

	query, args, err = s.sb.Select("program", "COUNT(*)").From("grants").GroupBy("program").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var program string
		var count int
		if err := rows.Scan(&program, &count); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		stats.Programs[program] = count
	}
	return stats, rows.Err()
}
