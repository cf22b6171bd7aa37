package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/david/eu-grants-monitor/internal/models"
)

var ErrNotFound = errors.New("not found")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Store struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		sb:      dialect.Builder(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the store's clock, used for the deadline filters.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type ListParams struct {
	Query             string
	MinAmount         float64
	MaxAmount         float64
	MaxComplexity     models.ComplexityLevel
	MinDaysToDeadline int
	Program           models.FundingProgram
	SortBy            string // "priority" (default), "deadline" or "amount"
	Limit             int
	Offset            int
}

type ListResult struct {
	Grants []models.Grant `json:"grants"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// UpsertResult counts inserted and updated rows.
type UpsertResult struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
}

var grantColumns = []string{
	"id", "title", "description", "synopsis", "program",
	"funding_amount", "min_funding", "max_funding",
	"deadline", "start_date", "end_date",
	"eligible_countries", "target_organizations", "keywords",
	"url", "documents_url",
	"relevance_score", "complexity_score", "priority_score",
	"created_at", "updated_at",
}

func scanGrant(scan func(dest ...any) error) (models.Grant, error) {
	var (
		g                            models.Grant
		program                      string
		minFunding, maxFunding       sql.NullFloat64
		deadline, start, end         nullTime
		created, updated             nullTime
		countries, targets, keywords stringList
	)
	err := scan(
		&g.ID, &g.Title, &g.Description, &g.Synopsis, &program,
		&g.FundingAmount, &minFunding, &maxFunding,
		&deadline, &start, &end,
		&countries, &targets, &keywords,
		&g.URL, &g.DocumentsURL,
		&g.RelevanceScore, &g.ComplexityScore, &g.PriorityScore,
		&created, &updated,
	)
	if err != nil {
		return g, err
	}
	g.Program = models.FundingProgram(program)
	g.MinFunding = floatPtr(minFunding)
	g.MaxFunding = floatPtr(maxFunding)
	g.Deadline = deadline.Time
	g.StartDate = start.Ptr()
	g.EndDate = end.Ptr()
	g.EligibleCountries = countries
	g.TargetOrganizations = targets
	g.Keywords = keywords
	g.CreatedAt = created.Time
	g.UpdatedAt = updated.Time
	return g, nil
}

// UpsertGrants inserts new grants and refreshes existing ones in a single
// transaction. created_at of an existing row is kept.
func (s *Store) UpsertGrants(ctx context.Context, grants []models.Grant) (UpsertResult, error) {
	var res UpsertResult
	if len(grants) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	for _, g := range grants {
		exists, err := s.grantExists(ctx, tx, g.ID)
		if err != nil {
			return UpsertResult{}, err
		}
		if exists {
			if err := s.updateGrant(ctx, tx, g, now); err != nil {
				return UpsertResult{}, err
			}
			res.Updated++
			continue
		}
		if err := s.insertGrant(ctx, tx, g, now); err != nil {
			return UpsertResult{}, err
		}
		res.New++
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return res, nil
}

func (s *Store) grantExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("grants").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}
	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check grant %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) insertGrant(ctx context.Context, tx *sql.Tx, g models.Grant, now time.Time) error {
	created := g.CreatedAt
	if created.IsZero() {
		created = now
	}
	query, args, err := s.sb.Insert("grants").Columns(grantColumns...).Values(
		g.ID, g.Title, g.Description, g.Synopsis, string(g.Program),
		g.FundingAmount, floatArg(g.MinFunding), floatArg(g.MaxFunding),
		g.Deadline.UTC(), timeArg(g.StartDate), timeArg(g.EndDate),
		encodeList(g.EligibleCountries), encodeList(g.TargetOrganizations), encodeList(g.Keywords),
		g.URL, g.DocumentsURL,
		g.RelevanceScore, g.ComplexityScore, g.PriorityScore,
		created.UTC(), now,
	).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert grant %s: %w", g.ID, err)
	}
	return nil
}

func (s *Store) updateGrant(ctx context.Context, tx *sql.Tx, g models.Grant, now time.Time) error {
	query, args, err := s.sb.Update("grants").SetMap(map[string]any{
		"title":                g.Title,
		"description":          g.Description,
		"synopsis":             g.Synopsis,
		"program":              string(g.Program),
		"funding_amount":       g.FundingAmount,
		"min_funding":          floatArg(g.MinFunding),
		"max_funding":          floatArg(g.MaxFunding),
		"deadline":             g.Deadline.UTC(),
		"start_date":           timeArg(g.StartDate),
		"end_date":             timeArg(g.EndDate),
		"eligible_countries":   encodeList(g.EligibleCountries),
		"target_organizations": encodeList(g.TargetOrganizations),
		"keywords":             encodeList(g.Keywords),
		"url":                  g.URL,
		"documents_url":        g.DocumentsURL,
		"relevance_score":      g.RelevanceScore,
		"complexity_score":     g.ComplexityScore,
		"priority_score":       g.PriorityScore,
		"updated_at":           now,
	}).Where(sq.Eq{"id": g.ID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update grant %s: %w", g.ID, err)
	}
	return nil
}

// UpdateScores rewrites only the three score columns.
func (s *Store) UpdateScores(ctx context.Context, grants []models.Grant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rescore: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	for _, g := range grants {
		query, args, err := s.sb.Update("grants").
			Set("relevance_score", g.RelevanceScore).
			Set("complexity_score", g.ComplexityScore).
			Set("priority_score", g.PriorityScore).
			Set("updated_at", now).
			Where(sq.Eq{"id": g.ID}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update scores %s: %w", g.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetGrant(ctx context.Context, id string) (*models.Grant, error) {
	query, args, err := s.sb.Select(grantColumns...).From("grants").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	g, err := scanGrant(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("grant %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get grant %s: %w", id, err)
	}
	return &g, nil
}

// AllGrants returns every stored grant ordered by id.
func (s *Store) AllGrants(ctx context.Context) ([]models.Grant, error) {
	query, args, err := s.sb.Select(grantColumns...).From("grants").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryGrants(ctx, query, args)
}

func (s *Store) ListGrants(ctx context.Context, params ListParams) (*ListResult, error) {
	params = normalizeListParams(params)
	where := s.grantFilters(params)

	countQuery, countArgs, err := s.sb.Select("COUNT(*)").From("grants").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	query, args, err := s.sb.Select(grantColumns...).From("grants").Where(where).
		OrderBy(grantOrder(params.SortBy)...).
		Limit(uint64(params.Limit)).Offset(uint64(params.Offset)).
		ToSql()
	if err != nil {
		return nil, err
	}
	grants, err := s.queryGrants(ctx, query, args)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Grants: grants,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

func normalizeListParams(p ListParams) ListParams {
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}
	if p.Limit > maxListLimit {
		p.Limit = maxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func (s *Store) grantFilters(p ListParams) sq.And {
	where := sq.And{}
	if q := strings.ToLower(strings.TrimSpace(p.Query)); q != "" {
		pattern := "%" + q + "%"
		where = append(where, sq.Or{
			sq.Like{"LOWER(title)": pattern},
			sq.Like{"LOWER(description)": pattern},
			sq.Like{"LOWER(keywords)": pattern},
		})
	}
	if p.MinAmount > 0 {
		where = append(where, sq.GtOrEq{"funding_amount": p.MinAmount})
	}
	if p.MaxAmount > 0 {
		where = append(where, sq.LtOrEq{"funding_amount": p.MaxAmount})
	}
	switch p.MaxComplexity {
	case models.ComplexitySimple:
		where = append(where, sq.Lt{"complexity_score": 30.0})
	case models.ComplexityMedium:
		where = append(where, sq.Lt{"complexity_score": 70.0})
	}
	if p.MinDaysToDeadline > 0 {
		where = append(where, sq.GtOrEq{"deadline": models.DateAfter(s.now(), p.MinDaysToDeadline)})
	}
	if p.Program != "" {
		where = append(where, sq.Eq{"program": string(p.Program)})
	}
	return where
}

func grantOrder(sortBy string) []string {
	switch sortBy {
	case "deadline":
		return []string{"deadline ASC", "priority_score DESC"}
	case "amount":
		return []string{"funding_amount DESC", "priority_score DESC"}
	default:
		return []string{"priority_score DESC", "deadline ASC"}
	}
}

func (s *Store) queryGrants(ctx context.Context, query string, args []any) ([]models.Grant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	grants := []models.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return grants, nil
}
