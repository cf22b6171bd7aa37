package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/david/eu-grants-monitor/internal/models"
)

var applicationColumns = []string{
	"id", "user_id", "grant_id", "status", "submitted_at", "deadline_reminder_sent",
	"decision_date", "awarded_amount", "feedback", "created_at", "updated_at",
}

func scanApplication(scan func(dest ...any) error) (models.Application, error) {
	var (
		a                   models.Application
		status              string
		submitted, decision nullTime
		created, updated    nullTime
		awarded             sql.NullFloat64
	)
	err := scan(&a.ID, &a.UserID, &a.GrantID, &status, &submitted, &a.DeadlineReminderSent,
		&decision, &awarded, &a.Feedback, &created, &updated)
	if err != nil {
		return a, err
	}
	a.Status = models.ApplicationStatus(status)
	a.SubmittedAt = submitted.Ptr()
	a.DecisionDate = decision.Ptr()
	a.AwardedAmount = floatPtr(awarded)
	a.CreatedAt = created.Time
	a.UpdatedAt = updated.Time
	return a, nil
}

// CreateApplication stores a new application for a user. Missing id and
// status are filled in (new uuid, draft).
func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Status == "" {
		app.Status = models.StatusDraft
	}
	if !app.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, app.Status)
	}
	now := s.now()
	app.CreatedAt, app.UpdatedAt = now, now

	query, args, err := s.sb.Insert("applications").Columns(applicationColumns...).Values(
		app.ID.String(), app.UserID.String(), app.GrantID, string(app.Status), timeArg(app.SubmittedAt),
		app.DeadlineReminderSent, timeArg(app.DecisionDate), floatArg(app.AwardedAmount), app.Feedback,
		now, now,
	).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (s *Store) ListApplications(ctx context.Context, userID uuid.UUID) ([]models.Application, error) {
	query, args, err := s.sb.Select(applicationColumns...).From("applications").
		Where(sq.Eq{"user_id": userID.String()}).OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	apps := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *Store) getApplication(ctx context.Context, userID, id uuid.UUID) (*models.Application, error) {
	query, args, err := s.sb.Select(applicationColumns...).From("applications").
		Where(sq.Eq{"id": id.String(), "user_id": userID.String()}).ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanApplication(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &a, nil
}

// UpdateApplicationStatus moves a user's application to a new status.
// Terminal applications cannot move; the first move to submitted stamps
// submitted_at.
func (s *Store) UpdateApplicationStatus(ctx context.Context, userID, id uuid.UUID, to models.ApplicationStatus) (*models.Application, error) {
	app, err := s.getApplication(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := app.Status.CanTransition(to); err != nil {
		return nil, err
	}

	now := s.now()
	update := s.sb.Update("applications").
		Set("status", string(to)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id.String()})
	if to == models.StatusSubmitted && app.SubmittedAt == nil {
		update = update.Set("submitted_at", now)
		app.SubmittedAt = &now
	}
	query, args, err := update.ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}

	app.Status = to
	app.UpdatedAt = now
	return app, nil
}
