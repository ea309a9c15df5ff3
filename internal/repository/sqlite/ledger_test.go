package sqlite

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuichiro/combogen/internal/model"
)

func newMockRepo(t *testing.T) (*LedgerRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLedgerRepository(&Connection{DB: db}), mock
}

func TestLedgerRepository_Load(t *testing.T) {
	repo, mock := newMockRepo(t)

	expires := time.Now().Truncate(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code, expires_at FROM codes")).
		WillReturnRows(sqlmock.NewRows([]string{"code", "expires_at"}).AddRow("143-626-716", expires.Unix()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, expires_at FROM grants")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(int64(42), expires.Unix()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT code FROM used_codes")).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("111-222-333"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM paused_users")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, display_name, generations, total_lines FROM usage_history")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "generations", "total_lines"}).
			AddRow(int64(42), "someone", 3, 250))

	snapshot, err := repo.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, expires.Unix(), snapshot.Codes["143-626-716"].Unix())
	assert.Equal(t, expires.Unix(), snapshot.Grants[42].Unix())
	assert.Contains(t, snapshot.UsedCodes, "111-222-333")
	assert.Contains(t, snapshot.Paused, int64(7))
	assert.Equal(t, model.UsageStats{DisplayName: "someone", Generations: 3, TotalLines: 250}, snapshot.History[42])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_LoadEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code, expires_at FROM codes")).
		WillReturnRows(sqlmock.NewRows([]string{"code", "expires_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, expires_at FROM grants")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT code FROM used_codes")).
		WillReturnRows(sqlmock.NewRows([]string{"code"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM paused_users")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, display_name, generations, total_lines FROM usage_history")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "generations", "total_lines"}))

	snapshot, err := repo.Load(context.Background())
	require.NoError(t, err)

	assert.Empty(t, snapshot.Codes)
	assert.Empty(t, snapshot.Grants)
	assert.Empty(t, snapshot.UsedCodes)
	assert.Empty(t, snapshot.Paused)
	assert.Empty(t, snapshot.History)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Save(t *testing.T) {
	repo, mock := newMockRepo(t)

	expires := time.Now().Truncate(time.Second)
	snapshot := model.LedgerSnapshot{
		Codes:     map[string]time.Time{"143-626-716": expires},
		Grants:    map[int64]time.Time{42: expires},
		UsedCodes: map[string]struct{}{"111-222-333": {}},
		Paused:    map[int64]struct{}{7: {}},
		History:   map[int64]model.UsageStats{42: {DisplayName: "someone", Generations: 3, TotalLines: 250}},
	}

	mock.ExpectBegin()
	for _, table := range []string{"codes", "grants", "used_codes", "paused_users", "usage_history"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO codes (code, expires_at) VALUES (?, ?)")).
		WithArgs("143-626-716", expires.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grants (user_id, expires_at) VALUES (?, ?)")).
		WithArgs(int64(42), expires.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO used_codes (code) VALUES (?)")).
		WithArgs("111-222-333").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO paused_users (user_id) VALUES (?)")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO usage_history (user_id, display_name, generations, total_lines) VALUES (?, ?, ?, ?)")).
		WithArgs(int64(42), "someone", 3, 250).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), snapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_SaveRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM codes")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Save(context.Background(), model.NewLedgerSnapshot())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
