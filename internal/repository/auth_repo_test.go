package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 8, 27, 9, 30, 0, 0, time.UTC)

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	repo := NewUserRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name       string
		expect     func(*sqlmock.ExpectedExec)
		wantID     int
		wantErrIs  error
		wantErrMsg string
	}{
		{
			name:   "success",
			expect: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(42, 1)) },
			wantID: 42,
		},
		{
			name: "duplicate username",
			expect: func(e *sqlmock.ExpectedExec) {
				e.WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"))
			},
			wantErrIs: ErrUsernameTaken,
		},
		{
			name:       "exec error",
			expect:     func(e *sqlmock.ExpectedExec) { e.WillReturnError(errors.New("disk I/O error")) },
			wantErrMsg: "insert user",
		},
		{
			name: "last insert id error",
			expect: func(e *sqlmock.ExpectedExec) {
				e.WillReturnResult(sqlmock.NewErrorResult(errors.New("no last id")))
			},
			wantErrMsg: "last insert id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newUserRepo(t)
			tt.expect(mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
				WithArgs("agronomist", "h123", formatTime(fixedNow)))

			id, err := repo.Create(ctx(t), "agronomist", "h123")
			switch {
			case tt.wantErrIs != nil:
				require.ErrorIs(t, err, tt.wantErrIs)
				assert.Zero(t, id)
			case tt.wantErrMsg != "":
				require.ErrorContains(t, err, tt.wantErrMsg)
				assert.Zero(t, id)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	cols := []string{"id", "username", "password_hash", "created_at"}

	t.Run("found", func(t *testing.T) {
		repo, mock := newUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("agronomist").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(7, "agronomist", "h123", formatTime(fixedNow)))

		u, err := repo.GetByUsername(ctx(t), "agronomist")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, 7, u.ID)
		assert.Equal(t, "h123", u.PasswordHash)
		assert.True(t, fixedNow.Equal(u.CreatedAt))
	})

	t.Run("legacy row without created_at", func(t *testing.T) {
		repo, mock := newUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("fieldtech").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(3, "fieldtech", "h456", nil))

		u, err := repo.GetByUsername(ctx(t), "fieldtech")
		require.NoError(t, err)
		assert.True(t, u.CreatedAt.IsZero())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		u, err := repo.GetByUsername(ctx(t), "missing")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("operator").
			WillReturnError(errors.New("db query failed"))

		u, err := repo.GetByUsername(ctx(t), "operator")
		require.ErrorContains(t, err, "select user")
		assert.Nil(t, u)
	})
}
