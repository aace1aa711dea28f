package sqlkv_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kv-reconciler/core/database"
	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"
	"kv-reconciler/feature/providers/sqlkv"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newSQLite(t *testing.T) *sqlkv.Backend {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	b, err := sqlkv.New(db, "kv_entries", true)
	require.NoError(t, err)
	return b
}

func TestBackend_CAS(t *testing.T) {
	ctx := context.Background()
	b := newSQLite(t)

	obs, err := b.Read(ctx, "app/x")
	require.NoError(t, err)
	assert.False(t, obs.Exists)

	ok, err := b.Write(ctx, "app/x", "v1", reconcile.CreateOnly)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Write(ctx, "app/x", "again", reconcile.CreateOnly)
	require.NoError(t, err)
	assert.False(t, ok, "second create must lose")

	obs, err = b.Read(ctx, "app/x")
	require.NoError(t, err)
	assert.Equal(t, reconcile.Found("v1", "1"), obs)

	ok, err = b.Write(ctx, "app/x", "v2", "7")
	require.NoError(t, err)
	assert.False(t, ok, "stale revision must lose")

	ok, err = b.Write(ctx, "app/x", "v2", obs.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	obs, err = b.Read(ctx, "app/x")
	require.NoError(t, err)
	assert.Equal(t, reconcile.Found("v2", "2"), obs)

	ok, err = b.Remove(ctx, "app/x", "1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.Remove(ctx, "app/x", reconcile.CreateOnly)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.Remove(ctx, "app/x", "2")
	require.NoError(t, err)
	assert.True(t, ok)

	obs, err = b.Read(ctx, "app/x")
	require.NoError(t, err)
	assert.False(t, obs.Exists)

	ok, err = b.Remove(ctx, "app/x", "3")
	require.NoError(t, err)
	assert.False(t, ok, "tombstone cannot be removed again")
}

func TestBackend_StaleTokenAfterRecreate(t *testing.T) {
	ctx := context.Background()
	b := newSQLite(t)

	ok, err := b.Write(ctx, "k", "orig", reconcile.CreateOnly)
	require.NoError(t, err)
	require.True(t, ok)

	stale, err := b.Read(ctx, "k")
	require.NoError(t, err)

	ok, err = b.Remove(ctx, "k", stale.Token)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Write(ctx, "k", "recreated", reconcile.CreateOnly)
	require.NoError(t, err)
	require.True(t, ok, "create over a tombstone succeeds")

	ok, err = b.Write(ctx, "k", "stale", stale.Token)
	require.NoError(t, err)
	assert.False(t, ok, "token from before the delete must not match")

	ok, err = b.Remove(ctx, "k", stale.Token)
	require.NoError(t, err)
	assert.False(t, ok)

	obs, err := b.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "recreated", obs.Value)
	assert.NotEqual(t, stale.Token, obs.Token)
}

func TestBackend_InvalidToken(t *testing.T) {
	b := newSQLite(t)
	_, err := b.Write(context.Background(), "k", "v", "not-a-number")
	assert.ErrorContains(t, err, "invalid sql revision token")
}

func TestBackend_Reconcile(t *testing.T) {
	ctx := context.Background()
	b := newSQLite(t)
	engine := reconcile.NewEngine(reconcile.Options{}, nil)
	desired := reconcile.DesiredState{Key: "feature/flag", Presence: reconcile.Present, Value: "on"}

	out, err := engine.Reconcile(ctx, b, desired)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, reconcile.ActionCreate, out.Action)

	out, err = engine.Reconcile(ctx, b, desired)
	require.NoError(t, err)
	assert.False(t, out.Changed)

	out, err = engine.Reconcile(ctx, b, reconcile.DesiredState{Key: "feature/flag", Presence: reconcile.Absent})
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionDelete, out.Action)
}

func TestBackend_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	b := newSQLite(t)
	engine := reconcile.NewEngine(reconcile.Options{MaxAttempts: 10}, nil)

	var wg sync.WaitGroup
	for _, v := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			_, err := engine.Reconcile(ctx, b, reconcile.DesiredState{Key: "race", Presence: reconcile.Present, Value: v})
			assert.NoError(t, err)
		}(v)
	}
	wg.Wait()

	obs, err := b.Read(ctx, "race")
	require.NoError(t, err)
	assert.True(t, obs.Exists)
	assert.Contains(t, []string{"a", "b", "c", "d"}, obs.Value)
}

func TestNew_VerifiesColumnsWithoutMigrate(t *testing.T) {
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, db.Exec("CREATE TABLE legacy (kv_key TEXT PRIMARY KEY, value TEXT)").Error)

	_, err = sqlkv.New(db, "legacy", false)
	assert.ErrorContains(t, err, "missing columns [revision deleted]")

	require.NoError(t, db.Exec("ALTER TABLE legacy ADD COLUMN revision INTEGER NOT NULL DEFAULT 0").Error)
	require.NoError(t, db.Exec("ALTER TABLE legacy ADD COLUMN deleted BOOLEAN NOT NULL DEFAULT 0").Error)
	_, err = sqlkv.New(db, "legacy", false)
	assert.NoError(t, err)
}

func newMockBackend(t *testing.T) (*sqlkv.Backend, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery("SHOW COLUMNS FROM `kv_entries`").WillReturnRows(
		sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("kv_key", "varchar(255)", "NO", "PRI", nil, "").
			AddRow("value", "text", "NO", "", nil, "").
			AddRow("revision", "bigint", "NO", "", nil, "").
			AddRow("deleted", "tinyint(1)", "NO", "", "0", ""))

	b, err := sqlkv.New(db, "kv_entries", false)
	require.NoError(t, err)
	return b, mock
}

func TestBackend_MySQL(t *testing.T) {
	ctx := context.Background()

	t.Run("Update conditioned on revision", func(t *testing.T) {
		b, mock := newMockBackend(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `kv_entries` SET .* WHERE kv_key = \\? AND revision = \\? AND deleted = \\?").
			WithArgs("v", "k", int64(4), false).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		ok, err := b.Write(ctx, "k", "v", "4")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Connection failure is unavailable", func(t *testing.T) {
		b, mock := newMockBackend(t)
		mock.ExpectQuery("SELECT \\* FROM `kv_entries`").WillReturnError(errors.New("connection refused"))

		_, err := b.Read(ctx, "k")
		assert.Equal(t, reconcile.BackendUnavailable, reconcile.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProvider(t *testing.T) {
	p := sqlkv.Provider(database.Config{Driver: database.DriverSQLite, Name: ":memory:", AutoMigrate: true})
	assert.Equal(t, sqlkv.Name, p.Name)
	assert.True(t, p.OwnsEndpoint)
	defer p.Close()

	first, err := p.Factory(registry.Target{Host: "ignored", Port: 1})
	require.NoError(t, err)

	out, err := reconcile.Reconcile(context.Background(), first,
		reconcile.DesiredState{Key: "k", Presence: reconcile.Present, Value: "v"})
	require.NoError(t, err)
	assert.True(t, out.Changed)

	second, err := p.Factory(registry.Target{})
	require.NoError(t, err)
	assert.Same(t, first, second, "resolutions share one connection pool")

	out, err = reconcile.Reconcile(context.Background(), second,
		reconcile.DesiredState{Key: "k", Presence: reconcile.Present, Value: "v"})
	require.NoError(t, err)
	assert.False(t, out.Changed)

	require.NoError(t, p.Close())

	_, err = sqlkv.Provider(database.Config{Driver: "oracle"}).Factory(registry.Target{})
	assert.Error(t, err)
}
