package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "username", "name", "phone", "password_digest", "is_active", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func strptr(s string) *string { return &s }

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^INSERT\s+INTO\s+users\s+\(email,\s*username,\s*name,\s*phone,\s*password_digest\).*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\).*RETURNING\s+id,`

	mock.ExpectQuery(q).
		WithArgs("a@x.com", "alice", nil, nil, "digest").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "a@x.com", "alice", nil, nil, "digest", true, now, now))

	u, err := repo.Create(context.Background(), &models.User{
		Email: "a@x.com", Username: strptr("alice"), PasswordDigest: "digest",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "alice", *u.Username)
	assert.Nil(t, u.Name)
	assert.True(t, u.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolationIsConflict(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		msg        string
	}{
		{name: "email", constraint: "users_email_key", msg: MsgEmailInUse},
		{name: "username", constraint: "users_username_key", msg: MsgUsernameTaken},
		{name: "other", constraint: "users_pkey", msg: MsgUserExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			_, err := repo.Create(context.Background(), &models.User{Email: "dup@x.com", PasswordDigest: "d"})
			require.True(t, errors.Is(err, common.ErrorConflict), "got %v", err)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@x.com"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	assert.False(t, errors.Is(err, common.ErrorConflict))
}

func TestFindByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`

	mock.ExpectQuery(q).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "a@x.com", nil, "Alice", "+15551234567", "digest", false, now, now))

	u, err := repo.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Nil(t, u.Username)
	assert.Equal(t, "Alice", *u.Name)
	assert.Equal(t, "+15551234567", *u.Phone)
	assert.False(t, u.IsActive)
}

const (
	id1 = "5b0f6c1e-8d2a-4a7e-9a51-3f2d8c6b1a01"
	id2 = "5b0f6c1e-8d2a-4a7e-9a51-3f2d8c6b1a02"
)

func TestFind_NotFoundReturnsNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*WHERE\s+id\s*=\s*\$1$`).
		WithArgs(id2).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`(?s)^SELECT.*WHERE\s+username\s*=\s*\$1$`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.FindByID(context.Background(), id2)
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = repo.FindByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*WHERE\s+id\s*=\s*\$1$`).WillReturnError(errors.New("db err"))

	_, err := repo.FindByID(context.Background(), id1)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdateByID_AppliesPartial(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^UPDATE\s+users\s+SET\s+username\s*=\s*COALESCE\(\$2,\s*username\),.*WHERE\s+id\s*=\s*\$1.*RETURNING`

	mock.ExpectQuery(q).
		WithArgs(id1, "bob", nil, nil).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(id1, "a@x.com", "bob", nil, nil, "digest", true, now, now))

	u, err := repo.UpdateByID(context.Background(), id1, models.ProfileUpdate{Username: strptr("bob")})
	require.NoError(t, err)
	assert.Equal(t, "bob", *u.Username)
}

func TestUpdateByID_Missing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+users`).WillReturnError(sql.ErrNoRows)

	u, err := repo.UpdateByID(context.Background(), id2, models.ProfileUpdate{Name: strptr("x")})
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUpdateByID_UsernameTaken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.UpdateByID(context.Background(), id1, models.ProfileUpdate{Username: strptr("taken")})
	assert.True(t, errors.Is(err, common.ErrorConflict))
}

func TestSetActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+is_active\s*=\s*\$2,.*WHERE\s+id\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs(id1, false).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(id2, false).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetActive(context.Background(), id1, false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetActive(context.Background(), id2, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMalformedIDNeverReachesDB(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	ctx := context.Background()

	u, err := repo.FindByID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = repo.UpdateByID(ctx, "not-a-uuid", models.ProfileUpdate{Name: strptr("x")})
	require.NoError(t, err)
	assert.Nil(t, u)

	ok, err := repo.SetActive(ctx, "not-a-uuid", false)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\)$`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS\s+\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\)$`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.EmailExists(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UsernameExists(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}
