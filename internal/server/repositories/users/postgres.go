package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"

	userColumns = `id, email, username, name, phone, password_digest, is_active, created_at, updated_at`
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                     models.User
		username, name, phone sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &username, &name, &phone,
		&u.PasswordDigest, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Username = fromNull(username)
	u.Name = fromNull(name)
	u.Phone = fromNull(phone)
	return &u, nil
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func conflictFrom(err error) error {
	switch {
	case dbx.IsUniqueViolation(err, emailConstraint):
		return common.Conflict(MsgEmailInUse)
	case dbx.IsUniqueViolation(err, usernameConstraint):
		return common.Conflict(MsgUsernameTaken)
	case dbx.IsUniqueViolation(err, ""):
		return common.Conflict(MsgUserExists)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, username, name, phone, password_digest)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, query,
		user.Email, user.Username, user.Name, user.Phone, user.PasswordDigest)

	u, err := scanUser(row)
	if err != nil {
		if c := conflictFrom(err); c != nil {
			return nil, c
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// validID reports whether id can match the UUID primary key. Anything else
// is treated as a missing user instead of being sent to the server.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, nil
	}
	return r.findOne(ctx, "id", id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *PostgresRepository) UpdateByID(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	if !validID(id) {
		return nil, nil
	}
	query :=
		`UPDATE users
		 SET username = COALESCE($2, username),
		     name = COALESCE($3, name),
		     phone = COALESCE($4, phone),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id, upd.Username, upd.Name, upd.Phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if c := conflictFrom(err); c != nil {
			return nil, c
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	query := `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) exists(ctx context.Context, column string, value string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE ` + column + ` = $1)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, value).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *PostgresRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}
