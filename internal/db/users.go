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

var ErrDuplicate = errors.New("already exists")

var userColumns = []string{"id", "email", "password_hash", "full_name", "company_name", "created_at"}

// CreateUser inserts a user with a unique email. The id and created_at are
// filled in.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	var exists int
	query, args, err := s.sb.Select("COUNT(*)").From("users").Where(sq.Eq{"email": u.Email}).ToSql()
	if err != nil {
		return err
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = s.now()
	query, args, err = s.sb.Insert("users").
		Columns("id", "email", "password_hash", "full_name", "company_name", "created_at", "updated_at").
		Values(u.ID.String(), u.Email, u.PasswordHash, u.FullName, u.CompanyName, u.CreatedAt, u.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query, args, err := s.sb.Select(userColumns...).From("users").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return nil, err
	}
	var (
		u       models.User
		created nullTime
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.CompanyName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = created.Time
	return &u, nil
}
