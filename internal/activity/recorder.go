// Package activity keeps the append-only event timeline shown on the
// dashboard. Events are written inside the transaction of the mutation
// they describe so the timeline never diverges from the primary state.
package activity

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	errMissingTitle      = errors.New("title is required")
)

// RecorderConfig describes the dependencies of the timeline recorder.
type RecorderConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Recorder appends and reads timeline events.
type Recorder struct {
	db     *gorm.DB
	clock  func() time.Time
	idp    ids.Provider
	logger *zap.Logger
}

// NewRecorder constructs the timeline recorder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: cfg.Database, clock: clock, idp: cfg.IDProvider, logger: logger}, nil
}

// Record appends one event using the caller's transaction handle, so the
// event commits or rolls back together with the mutation it describes.
func (r *Recorder) Record(tx *gorm.DB, entry Entry) error {
	if entry.UserID == "" {
		return errMissingUserID
	}
	if entry.Title == "" {
		return errMissingTitle
	}

	id, err := r.idp.NewID()
	if err != nil {
		r.logger.Error("activity id generation failed", zap.Error(err))
		return err
	}

	row := Activity{
		ID:          id,
		UserID:      entry.UserID,
		Type:        entry.Type,
		Title:       entry.Title,
		Description: entry.Description,
		CreatedAt:   r.clock().UTC(),
	}
	if entry.ApplicationID != "" {
		row.RelatedApplicationID = &entry.ApplicationID
	}
	if entry.DocumentID != "" {
		row.RelatedDocumentID = &entry.DocumentID
	}
	if entry.ProgramID != "" {
		row.RelatedProgramID = &entry.ProgramID
	}

	return tx.Create(&row).Error
}

// Recent returns the latest events for a user, newest first.
func (r *Recorder) Recent(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit < 1 {
		limit = 10
	}
	var rows []Activity
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(listing.DefaultOrder).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		r.logger.Error("activity query failed", zap.Error(err), zap.String("user_id", userID))
		return nil, apperr.Storage(err)
	}
	return rows, nil
}

// List returns one page of a user's timeline.
func (r *Recorder) List(ctx context.Context, userID string, params listing.Params) (listing.Result[Activity], error) {
	result, err := listing.Run[Activity](r.db.WithContext(ctx), params, listing.DefaultOrder,
		listing.Equals("user_id", userID),
	)
	if err != nil {
		r.logger.Error("activity query failed", zap.Error(err), zap.String("user_id", userID))
		return listing.Result[Activity]{}, apperr.Storage(err)
	}
	return result, nil
}

// ClearDocumentRefs nulls timeline references to a deleted document inside
// the caller's transaction.
func ClearDocumentRefs(tx *gorm.DB, documentID string) error {
	return tx.Exec("UPDATE activities SET related_document_id = NULL WHERE related_document_id = ?", documentID).Error
}

// ClearApplicationRefs nulls timeline references to a deleted application
// inside the caller's transaction.
func ClearApplicationRefs(tx *gorm.DB, applicationID string) error {
	return tx.Exec("UPDATE activities SET related_application_id = NULL WHERE related_application_id = ?", applicationID).Error
}

// ClearProgramRefs nulls timeline references to a deleted program inside
// the caller's transaction.
func ClearProgramRefs(tx *gorm.DB, programID string) error {
	return tx.Exec("UPDATE activities SET related_program_id = NULL WHERE related_program_id = ?", programID).Error
}

// ClearApplicationRefsByProgram nulls timeline references to every
// application of a program. Deleting a program cascades its applications,
// so their timeline links must be released in the same transaction.
func ClearApplicationRefsByProgram(tx *gorm.DB, programID string) error {
	return tx.Exec(
		"UPDATE activities SET related_application_id = NULL WHERE related_application_id IN (SELECT id FROM applications WHERE program_id = ?)",
		programID,
	).Error
}
