package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"crowdfunding/internal/config"
	"crowdfunding/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type captureWriter struct {
	lines []string
}

func (w *captureWriter) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestOpenSQLiteMigrates(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "data", "test.db"),
	}
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	for _, m := range model.AllModels() {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("table for %T not migrated", m)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	w := &captureWriter{}
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "log.db")), &gorm.Config{
		Logger: newGormLogger(w, false),
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := db.AutoMigrate(&model.Account{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	w.lines = nil

	var account model.Account
	if err := db.Where("account_id = ?", "nobody").First(&account).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if len(w.lines) != 0 {
		t.Fatalf("record not found must not be logged, got %v", w.lines)
	}

	if err := db.Table("missing_table").First(&account).Error; err == nil {
		t.Fatal("expected error for missing table")
	}
	if len(w.lines) == 0 {
		t.Fatal("real query errors must still be logged")
	}
}
