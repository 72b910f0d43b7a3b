package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingRecorder   = errors.New("activity recorder is required")
)

const (
	opCreate = "documents.create"
	opList   = "documents.list"
	opUpdate = "documents.update"
	opDelete = "documents.delete"
)

// ServiceConfig describes the dependencies of the document service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Recorder   *activity.Recorder
	Logger     *zap.Logger
}

// Service manages uploaded document records. File bytes live in external
// storage; this service tracks metadata and verification state.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	idp      ids.Provider
	recorder *activity.Recorder
	logger   *zap.Logger
}

// NewService constructs the document service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Recorder == nil {
		return nil, errMissingRecorder
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       cfg.Database,
		clock:    clock,
		idp:      cfg.IDProvider,
		recorder: cfg.Recorder,
		logger:   logger,
	}, nil
}

// Create records an upload. The owner must exist; when an application link
// is supplied, it must exist too. The record and its timeline entry commit
// together.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Document, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("name", "must not be empty")
	}
	if input.UserID == "" {
		return nil, apperr.Validation("user_id", "must be supplied")
	}
	if input.Type == "" {
		input.Type = TypeOther
	}

	id, err := s.idp.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, apperr.Storage(err)
	}

	var document Document
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner users.User
		if err := tx.Where("id = ?", input.UserID).First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.RefNotFound("user")
			}
			return apperr.Storage(err)
		}

		var linkedApplication *string
		if input.ApplicationID != "" {
			var application applications.Application
			if err := tx.Where("id = ?", input.ApplicationID).First(&application).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.RefNotFound("application")
				}
				return apperr.Storage(err)
			}
			linkedApplication = &application.ID
		}

		now := s.clock().UTC()
		document = Document{
			ID:            id,
			UserID:        input.UserID,
			ApplicationID: linkedApplication,
			Type:          input.Type,
			Name:          name,
			Filename:      strings.TrimSpace(input.Filename),
			FileSize:      input.FileSize,
			MimeType:      input.MimeType,
			Status:        StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(&document).Error; err != nil {
			s.logError(opCreate, "insert_failed", err, zap.String("user_id", input.UserID))
			return apperr.Storage(err)
		}

		entry := activity.Entry{
			UserID:      input.UserID,
			Type:        activity.TypeDocumentUploaded,
			Title:       "Document uploaded",
			Description: fmt.Sprintf("Uploaded %s", name),
			DocumentID:  document.ID,
		}
		if linkedApplication != nil {
			entry.ApplicationID = *linkedApplication
		}
		if err := s.recorder.Record(tx, entry); err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &document, nil
}

// GetByID returns the document or a NotFound error.
func (s *Service) GetByID(ctx context.Context, id string) (*Document, error) {
	var document Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("document")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &document, nil
}

// List returns one page of documents matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, params listing.Params) (listing.Result[Document], error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return listing.Result[Document]{}, apperr.Validation("status", "unknown status value")
	}

	scopes := make([]listing.Scope, 0, 4)
	if filter.UserID != "" {
		scopes = append(scopes, listing.Equals("user_id", filter.UserID))
	}
	if filter.ApplicationID != "" {
		scopes = append(scopes, listing.Equals("application_id", filter.ApplicationID))
	}
	if filter.Type != "" {
		scopes = append(scopes, listing.Equals("document_type", filter.Type))
	}
	if filter.Status != "" {
		scopes = append(scopes, listing.Equals("status", filter.Status))
	}

	result, err := listing.Run[Document](s.db.WithContext(ctx), params, listing.DefaultOrder, scopes...)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return listing.Result[Document]{}, apperr.Storage(err)
	}
	return result, nil
}

// Update applies a partial patch. Reaching verified stamps verified_at and
// records a timeline entry in the same transaction.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Document, error) {
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return nil, apperr.Validation("status", "unknown status value")
	}

	var updated Document
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var document Document
		if err := tx.Where("id = ?", id).First(&document).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("document")
			}
			return apperr.Storage(err)
		}

		nowVerified := false
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return apperr.Validation("name", "must not be empty")
			}
			document.Name = name
		}
		if patch.Status != nil && *patch.Status != document.Status {
			if *patch.Status == StatusVerified {
				now := s.clock().UTC()
				document.VerifiedAt = &now
				nowVerified = true
			}
			document.Status = *patch.Status
		}

		document.UpdatedAt = s.clock().UTC()
		if err := tx.Save(&document).Error; err != nil {
			s.logError(opUpdate, "save_failed", err, zap.String("document_id", id))
			return apperr.Storage(err)
		}

		if nowVerified {
			entry := activity.Entry{
				UserID:      document.UserID,
				Type:        activity.TypeDocumentVerified,
				Title:       "Document verified",
				Description: fmt.Sprintf("%s passed verification", document.Name),
				DocumentID:  document.ID,
			}
			if err := s.recorder.Record(tx, entry); err != nil {
				return apperr.Storage(err)
			}
		}

		updated = document
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &updated, nil
}

// Delete removes the record, clears timeline references to it and records
// the deletion, all in one transaction.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var document Document
		if err := tx.Where("id = ?", id).First(&document).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("document")
			}
			return apperr.Storage(err)
		}

		if err := activity.ClearDocumentRefs(tx, id); err != nil {
			return apperr.Storage(err)
		}
		if err := tx.Delete(&document).Error; err != nil {
			s.logError(opDelete, "delete_failed", err, zap.String("document_id", id))
			return apperr.Storage(err)
		}

		entry := activity.Entry{
			UserID:      document.UserID,
			Type:        activity.TypeDocumentDeleted,
			Title:       "Document deleted",
			Description: fmt.Sprintf("Deleted %s", document.Name),
		}
		if err := s.recorder.Record(tx, entry); err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("documents service error", attrs...)
}
