package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsNormalizesEmails(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&users.User{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	legacy := users.User{
		ID:             "user-1",
		Username:       "alice",
		Email:          "Alice@Example.COM",
		HashedPassword: "digest",
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert user: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored users.User
	if err := database.Where("id = ?", legacy.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload user: %v", err)
	}
	if stored.Email != "alice@example.com" {
		testContext.Fatalf("expected lowercased email, got %q", stored.Email)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationNormalizeUserEmails).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsIsIdempotent(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&users.User{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second run must be a no-op: %v", err)
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count records: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected a single migration record, got %d", count)
	}
}
