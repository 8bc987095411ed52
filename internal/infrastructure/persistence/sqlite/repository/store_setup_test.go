package repository

import (
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"sentinel/internal/infrastructure/persistence/sqlite/model"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "store.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(
		&model.Repository{},
		&model.CodeEvent{},
		&model.CodeAttribution{},
		&model.RepoMetric{},
		&model.Alert{},
		&model.Incident{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}
