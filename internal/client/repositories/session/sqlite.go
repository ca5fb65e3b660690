package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session (id, email, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`, s.Email, s.AccessToken, s.RefreshToken, s.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context) (*Session, error) {
	var (
		s       Session
		updated int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT email, access_token, refresh_token, updated_at FROM session WHERE id = 1`,
	).Scan(&s.Email, &s.AccessToken, &s.RefreshToken, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.UpdatedAt = time.Unix(updated, 0).UTC()
	return &s, nil
}

func (r *SQLiteRepository) UpdateTokens(ctx context.Context, access, refresh string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE session SET access_token = ?, refresh_token = ?, updated_at = ? WHERE id = 1`,
		access, refresh, at.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to update session tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update session tokens: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
