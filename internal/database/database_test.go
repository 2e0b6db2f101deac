package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"penfeed/internal/config"
	"penfeed/internal/middleware"
	"penfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: NewGormLogger(middleware.Logger).LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)

	err := configurePool(db, &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestDSN_DefaultsSSLMode(t *testing.T) {
	got := dsn(&config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "penfeed"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=penfeed sslmode=disable", got)
}

func TestPersistentModels_CoverDomain(t *testing.T) {
	var haveFollow, haveGroup bool
	for _, m := range PersistentModels() {
		switch m.(type) {
		case *models.Follow:
			haveFollow = true
		case *models.Group:
			haveGroup = true
		}
	}
	assert.True(t, haveFollow)
	assert.True(t, haveGroup)
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "000001_init", all[0].String())
	assert.Contains(t, all[0].UpScript, "ON DELETE SET NULL")
	assert.Contains(t, all[0].DownScript, "DROP TABLE IF EXISTS follows")

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}

	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestLoadMigrations_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"missing down", fstest.MapFS{
			"m/000001_a.up.sql": {Data: []byte("SELECT 1")},
		}},
		{"bad version", fstest.MapFS{
			"m/abc_a.up.sql":   {Data: []byte("SELECT 1")},
			"m/abc_a.down.sql": {Data: []byte("SELECT 1")},
		}},
		{"duplicate version", fstest.MapFS{
			"m/000001_a.up.sql":   {Data: []byte("SELECT 1")},
			"m/000001_a.down.sql": {Data: []byte("SELECT 1")},
			"m/000001_b.up.sql":   {Data: []byte("SELECT 1")},
			"m/000001_b.down.sql": {Data: []byte("SELECT 1")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys, "m")
			assert.Error(t, err)
		})
	}
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "init"}, {Version: 2, Name: "indexes"}}

	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := pendingMigrations([]int{1, 3}, registered)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		env      string
		allow    bool
		wantMode SchemaMode
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", "", "development", false, SchemaModeHybrid, true, true, false},
		{"hybrid prod", "hybrid", "production", false, SchemaModeHybrid, true, false, false},
		{"sql", "SQL", "development", false, SchemaModeSQL, true, false, false},
		{"auto dev", "auto", "development", false, SchemaModeAuto, false, true, false},
		{"auto staging refused", "auto", "staging", false, SchemaModeAuto, false, false, true},
		{"auto prod allowed", "auto", "production", true, SchemaModeAuto, false, true, false},
		{"unknown", "yolo", "development", false, "yolo", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanSchema(&config.Config{
				DBSchemaMode:                  tt.mode,
				Env:                           tt.env,
				DBAutoMigrateAllowDestructive: tt.allow,
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, plan.Mode)
			assert.Equal(t, tt.wantSQL, plan.SQL)
			assert.Equal(t, tt.wantAuto, plan.AutoMigrate)
		})
	}
}

func TestInspectTables(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	tables, err := InspectTables(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "groups", "posts", "comments", "follows"}, missingTables(tables))

	cfg := &config.Config{Env: "test", DBSchemaMode: string(SchemaModeAuto)}
	require.NoError(t, ApplySchema(ctx, db, cfg))
	require.NoError(t, db.Create(&models.User{Username: "leo", Email: "leo@example.com", Password: "x"}).Error)

	status, err := GetSchemaStatus(ctx, db, cfg)
	require.NoError(t, err)
	assert.Empty(t, status.Missing())
	assert.Empty(t, status.Pending, "auto mode does not look at sql migrations")
	require.Len(t, status.Tables, 5)
	assert.Equal(t, TableState{Table: "users", Present: true, Rows: 1}, status.Tables[0])
	assert.Equal(t, TableState{Table: "posts", Present: true}, status.Tables[2])
}

type fakeMigrationStore struct {
	applied []int
	ran     []int
	failOn  int
}

func (s *fakeMigrationStore) GetAppliedMigrations(context.Context) ([]int, error) {
	return s.applied, nil
}

func (s *fakeMigrationStore) ApplyMigration(_ context.Context, m Migration) error {
	if m.Version == s.failOn {
		return errors.New("syntax error")
	}
	s.ran = append(s.ran, m.Version)
	return nil
}

func (s *fakeMigrationStore) RevertMigration(context.Context, Migration) error { return nil }

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	db := openSQLite(t)
	store := &fakeMigrationStore{applied: []int{1}}
	registered := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}

	require.NoError(t, runMigrations(context.Background(), db, store, registered))
	assert.Equal(t, []int{2, 3}, store.ran)
}

func TestRunMigrations_StopsOnFailure(t *testing.T) {
	db := openSQLite(t)
	store := &fakeMigrationStore{failOn: 2}
	registered := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}

	assert.Error(t, runMigrations(context.Background(), db, store, registered))
	assert.Equal(t, []int{1}, store.ran)
}

func TestAutoMigrate_CascadesOnSQLite(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	author := models.User{Username: "leo", Email: "leo@example.com", Password: "x"}
	require.NoError(t, db.Create(&author).Error)
	group := models.Group{Title: "Cats", Slug: "cats"}
	require.NoError(t, db.Create(&group).Error)
	post := models.Post{Text: "hello", AuthorID: author.ID, GroupID: &group.ID}
	require.NoError(t, db.Omit("Author", "Group").Create(&post).Error)

	require.NoError(t, db.Delete(&group).Error)
	var reloaded models.Post
	require.NoError(t, db.First(&reloaded, post.ID).Error)
	assert.Nil(t, reloaded.GroupID)

	require.NoError(t, db.Delete(&author).Error)
	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}
