package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	opCreate      = "notifications.create"
	opList        = "notifications.list"
	opMarkRead    = "notifications.mark_read"
	opMarkAllRead = "notifications.mark_all_read"
	opDelete      = "notifications.delete"
)

// ServiceConfig describes the dependencies of the notification service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service manages the per-user notification inbox.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	idp    ids.Provider
	logger *zap.Logger
}

// NewService constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
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
	return &Service{db: cfg.Database, clock: clock, idp: cfg.IDProvider, logger: logger}, nil
}

// Create publishes a notification. The recipient must exist; optional
// application and program links must exist when supplied.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Notification, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperr.Validation("title", "must not be empty")
	}
	if input.UserID == "" {
		return nil, apperr.Validation("user_id", "must be supplied")
	}
	if input.Type == "" {
		input.Type = TypeSystem
	}
	if !ValidType(input.Type) {
		return nil, apperr.Validation("notification_type", "unknown type value")
	}

	id, err := s.idp.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, apperr.Storage(err)
	}

	var notification Notification
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipient users.User
		if err := tx.Where("id = ?", input.UserID).First(&recipient).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.RefNotFound("user")
			}
			return apperr.Storage(err)
		}

		var applicationRef *string
		if input.RelatedApplicationID != "" {
			var application applications.Application
			if err := tx.Where("id = ?", input.RelatedApplicationID).First(&application).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.RefNotFound("application")
				}
				return apperr.Storage(err)
			}
			applicationRef = &application.ID
		}

		var programRef *string
		if input.RelatedProgramID != "" {
			var program programs.Program
			if err := tx.Where("id = ?", input.RelatedProgramID).First(&program).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.RefNotFound("program")
				}
				return apperr.Storage(err)
			}
			programRef = &program.ID
		}

		now := s.clock().UTC()
		notification = Notification{
			ID:                   id,
			UserID:               input.UserID,
			Type:                 input.Type,
			Title:                title,
			Message:              strings.TrimSpace(input.Message),
			RelatedApplicationID: applicationRef,
			RelatedProgramID:     programRef,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.Create(&notification).Error; err != nil {
			s.logError(opCreate, "insert_failed", err, zap.String("user_id", input.UserID))
			return apperr.Storage(err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &notification, nil
}

// GetByID returns the notification or a NotFound error.
func (s *Service) GetByID(ctx context.Context, id string) (*Notification, error) {
	var notification Notification
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("notification")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &notification, nil
}

// List returns one page of notifications matching the filter, newest
// first.
func (s *Service) List(ctx context.Context, filter ListFilter, params listing.Params) (listing.Result[Notification], error) {
	if filter.Type != "" && !ValidType(filter.Type) {
		return listing.Result[Notification]{}, apperr.Validation("notification_type", "unknown type value")
	}

	scopes := make([]listing.Scope, 0, 3)
	if filter.UserID != "" {
		scopes = append(scopes, listing.Equals("user_id", filter.UserID))
	}
	if filter.Type != "" {
		scopes = append(scopes, listing.Equals("notification_type", filter.Type))
	}
	if filter.UnreadOnly {
		scopes = append(scopes, listing.Equals("is_read", false))
	}

	result, err := listing.Run[Notification](s.db.WithContext(ctx), params, listing.DefaultOrder, scopes...)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return listing.Result[Notification]{}, apperr.Storage(err)
	}
	return result, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, apperr.Validation("user_id", "must be supplied")
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return count, nil
}

// MarkRead marks one notification as read and stamps read_at. Marking an
// already read notification is a no-op that keeps the original read_at.
func (s *Service) MarkRead(ctx context.Context, id string) (*Notification, error) {
	var updated Notification
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var notification Notification
		if err := tx.Where("id = ?", id).First(&notification).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("notification")
			}
			return apperr.Storage(err)
		}

		if !notification.IsRead {
			now := s.clock().UTC()
			notification.IsRead = true
			notification.ReadAt = &now
			notification.UpdatedAt = now
			if err := tx.Save(&notification).Error; err != nil {
				s.logError(opMarkRead, "save_failed", err, zap.String("notification_id", id))
				return apperr.Storage(err)
			}
		}

		updated = notification
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &updated, nil
}

// MarkAllRead marks every unread notification of the user as read and
// returns the number of rows affected.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, apperr.Validation("user_id", "must be supplied")
	}

	now := s.clock().UTC()
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read":    true,
			"read_at":    now,
			"updated_at": now,
		})
	if result.Error != nil {
		s.logError(opMarkAllRead, "bulk_update_failed", result.Error, zap.String("user_id", userID))
		return 0, apperr.Storage(result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes the notification.
func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Notification{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error, zap.String("notification_id", id))
		return apperr.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("notification")
	}
	return nil
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
	s.logger.Error("notification operation failed", attrs...)
}
