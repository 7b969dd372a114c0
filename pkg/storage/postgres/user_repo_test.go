package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/model"
)

func TestUserRepoGetCredential(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewUserRepo(db)

	athlete := json.RawMessage(`{"id":7,"firstname":"Ada"}`)
	rows := pgxmock.NewRows([]string{"id", "access_token", "refresh_token", "expires_at", "ai_enabled", "athlete"}).
		AddRow(int64(7), "access", "refresh", int64(1756700000), true, athlete)
	mock.ExpectQuery("SELECT id, access_token, refresh_token, expires_at, ai_enabled, athlete").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	cred, err := repo.GetCredential(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cred.Owner)
	assert.Equal(t, "access", cred.AccessToken)
	assert.True(t, cred.AIEnabled)
	assert.JSONEq(t, string(athlete), string(cred.Athlete))
}

func TestUserRepoGetCredentialMissing(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT id, access_token").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetCredential(context.Background(), 404)
	assert.ErrorIs(t, err, errs.ErrNoCredential)
}

func TestUserRepoUpsertKeepsAIOptIn(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewUserRepo(db)

	// ai_enabled is deliberately absent from the upsert column list so a
	// re-authorization cannot reset the opt-in.
	mock.ExpectExec("INSERT INTO users \\(id, access_token, refresh_token, expires_at, athlete\\)").
		WithArgs(int64(7), "access", "refresh", int64(1756700000), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Upsert(context.Background(), &model.Credential{
		Owner:        7,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    1756700000,
		Athlete:      json.RawMessage(`{"id":7}`),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoUpdateTokensMissing(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("UPDATE users").
		WithArgs(int64(404), "access", "refresh", int64(1756700000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateTokens(context.Background(), 404, "access", "refresh", 1756700000)
	assert.ErrorIs(t, err, errs.ErrNoCredential)
}

func TestUserRepoSetAIEnabled(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("UPDATE users SET ai_enabled").
		WithArgs(int64(7), true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.SetAIEnabled(context.Background(), 7, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoDeleteAbsentRowIsNotAnError(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("DELETE FROM users").
		WithArgs(int64(404)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(t, repo.Delete(context.Background(), 404))
}

func TestUserRepoCount(t *testing.T) {
	mock, db := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
