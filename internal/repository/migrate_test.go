package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	first := migrations[0]
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, "referrals", first.Name)
	assert.Contains(t, first.Up, "CREATE TABLE IF NOT EXISTS referrals")
	assert.Contains(t, first.Up, "idx_referrals_natural_key")
	assert.Contains(t, first.Down, "DROP TABLE IF EXISTS referrals")

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version, "migrations must be sorted")
	}
}

func TestMigrator_Up(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	migrator, err := NewMigrator(db)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("AppliesPending", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "schema_migrations"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM "schema_migrations"`)).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS referrals").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "schema_migrations" (version) VALUES ($1)`)).
			WithArgs("000001").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := migrator.Up(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SkipsApplied", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "schema_migrations"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM "schema_migrations"`)).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("000001"))

		applied, err := migrator.Up(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollsBackOnFailure", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "schema_migrations"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM "schema_migrations"`)).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS referrals").
			WillReturnError(errors.New("syntax error"))
		mock.ExpectRollback()

		applied, err := migrator.Up(ctx)
		assert.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "000001_referrals"))
		assert.Equal(t, 0, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigrator_Down(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	migrator, err := NewMigrator(db)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "schema_migrations"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM "schema_migrations"`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("000001"))
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS referrals").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "schema_migrations" WHERE version = $1`)).
		WithArgs("000001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rolledBack, err := migrator.Down(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, rolledBack)
	assert.NoError(t, mock.ExpectationsWereMet())
}
