package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/notifications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema
// migrations. TranslateError maps driver unique-constraint failures to
// gorm.ErrDuplicatedKey so services can surface them as duplicates.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	// SQLite leaves referential actions off unless asked.
	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&users.User{},
		&programs.Program{},
		&posts.Post{},
		&applications.Application{},
		&documents.Document{},
		&notifications.Notification{},
		&activity.Activity{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
