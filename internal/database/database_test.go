package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"bbs/internal/config"
	"bbs/internal/middleware"
	"bbs/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger(middleware.Logger)})
	require.NoError(t, err)
	require.NoError(t, configurePool(db, &config.Config{}))
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestConfigurePool(t *testing.T) {
	db := setupSQLite(t)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, Ping(context.Background(), db))
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: config.DriverSQLite, DBSQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = Dialector(&config.Config{DBDriver: config.DriverPostgres, DBHost: "db", DBName: "bbs"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = Dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestRegisteredMigrations(t *testing.T) {
	for _, dialect := range []string{"postgres", "sqlite"} {
		ms := GetMigrations(dialect)
		require.NotEmpty(t, ms, dialect)
		assert.Equal(t, 1, ms[0].Version)
		assert.Equal(t, "000001_create_bbs_posts", ms[0].String())
		for i := 1; i < len(ms); i++ {
			assert.Less(t, ms[i-1].Version, ms[i].Version)
		}
	}
}

func TestRegisterMigrations_MissingDownScript(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/fake/000001_init.up.sql": {Data: []byte("SELECT 1;")},
	}
	err := RegisterMigrations(fsys, "fake")
	assert.Error(t, err)
}

func TestRunMigrations_SQLite(t *testing.T) {
	db := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db))
	// Second run is a no-op.
	require.NoError(t, RunMigrations(ctx, db))

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, len(GetMigrations("sqlite")))

	post := models.Post{Name: "kim", Title: "hello", Content: "body", IPAddr: "127.0.0.1"}
	require.NoError(t, db.Create(&post).Error)
	assert.NotZero(t, post.ID)
	assert.Equal(t, 0, post.HitCount)
}

func TestRollbackLatest(t *testing.T) {
	db := setupSQLite(t)
	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, db))

	latest := GetMigrations("sqlite")[len(GetMigrations("sqlite"))-1].Version
	version, err := RollbackLatest(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, latest, version)

	err = RollbackMigration(ctx, db, latest)
	assert.ErrorContains(t, err, "has not been applied")
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))
	assert.ErrorContains(t, validateAppliedVersions([]int{1, 9}, registered), "000009")
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name            string
		cfg             config.Config
		wantSQL         bool
		wantAuto        bool
		wantDestructive bool
		wantError       bool
	}{
		{"Hybrid dev postgres", config.Config{Env: "development", DBDriver: config.DriverPostgres}, true, true, false, false},
		{"Hybrid prod postgres", config.Config{Env: "production", DBDriver: config.DriverPostgres}, true, false, false, false},
		{"Hybrid staging postgres", config.Config{Env: "Staging", DBDriver: config.DriverPostgres}, true, false, false, false},
		{"Hybrid sqlite", config.Config{Env: "development", DBDriver: config.DriverSQLite}, true, false, false, false},
		{"SQL only", config.Config{DBSchemaMode: "sql"}, true, false, false, false},
		{"Auto dev", config.Config{DBSchemaMode: "auto", Env: "test"}, false, true, false, false},
		{"Auto prod refused", config.Config{DBSchemaMode: "auto", Env: "production"}, false, false, false, true},
		{"Auto prod allowed", config.Config{DBSchemaMode: "auto", Env: "production", DBAutoMigrateAllowDestructive: true}, false, true, true, false},
		{"Unknown mode", config.Config{DBSchemaMode: "yolo"}, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanSchema(&tt.cfg)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.SQL)
			assert.Equal(t, tt.wantAuto, plan.AutoMigrate)
			assert.Equal(t, tt.wantDestructive, plan.Destructive)
		})
	}
}

func TestPlanSchema_DefaultsToHybrid(t *testing.T) {
	plan, err := PlanSchema(&config.Config{Env: "test", DBDriver: config.DriverSQLite})
	require.NoError(t, err)
	assert.Equal(t, SchemaModeHybrid, plan.Mode)
	assert.Equal(t, "test", plan.Environment)
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	assert.Equal(t, registered, pendingMigrations(nil, registered))
	pending := pendingMigrations([]int{2}, registered)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Version)
	assert.Equal(t, 3, pending[1].Version)
	assert.Empty(t, pendingMigrations([]int{1, 2, 3}, registered))
}

func TestApplySchemaAndStatus(t *testing.T) {
	db := setupSQLite(t)
	ctx := context.Background()
	cfg := &config.Config{Env: "test", DBDriver: config.DriverSQLite, DBSchemaMode: "sql"}

	status, err := GetSchemaStatus(ctx, db, cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Dialect)
	assert.True(t, status.SQL)
	assert.False(t, status.AutoMigrate)
	assert.Len(t, status.PendingMigrations, len(GetMigrations("sqlite")))

	require.NoError(t, ApplySchema(ctx, db, cfg))

	status, err = GetSchemaStatus(ctx, db, cfg)
	require.NoError(t, err)
	assert.Empty(t, status.PendingMigrations)
	assert.True(t, db.Migrator().HasTable(&models.Post{}))
}

func TestApplySchema_AutoMode(t *testing.T) {
	db := setupSQLite(t)
	cfg := &config.Config{Env: "test", DBDriver: config.DriverSQLite, DBSchemaMode: "auto"}
	require.NoError(t, ApplySchema(context.Background(), db, cfg))
	assert.True(t, db.Migrator().HasTable("bbs_posts"))
}

func TestPersistentModels_IncludesPost(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*models.Post); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include Post")
}

func TestIsMissingTableError(t *testing.T) {
	assert.True(t, isMissingTableError(&pgconn.PgError{Code: "42P01", Message: `relation "schema_migrations" does not exist`}))
	assert.False(t, isMissingTableError(&pgconn.PgError{Code: "42501", Message: "permission denied"}))
	assert.True(t, isMissingTableError(fmt.Errorf("query: %w", errors.New("no such table: schema_migrations"))))
	assert.False(t, isMissingTableError(errors.New("connection refused")))
}
