package applications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
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
	errMissingRecorder   = errors.New("activity recorder is required")
)

const (
	opCreate    = "applications.create"
	opList      = "applications.list"
	opUpdate    = "applications.update"
	opSubmit    = "applications.submit"
	opDelete    = "applications.delete"
	opDeadlines = "applications.upcoming_deadlines"
	opStats     = "applications.count_by_status"

	submittedProgress = 100
)

// ServiceConfig describes the dependencies of the application service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Recorder   *activity.Recorder
	Logger     *zap.Logger
}

// Service manages applications and their lifecycle.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	idp      ids.Provider
	recorder *activity.Recorder
	logger   *zap.Logger
}

// NewService constructs the application service.
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

// Create starts a draft application. The external reference is derived
// from the program's university, the current year, and the count of the
// user's existing applications plus one. The draft and its timeline entry
// commit together.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Application, error) {
	if input.UserID == "" {
		return nil, apperr.Validation("user_id", "must be supplied")
	}
	if input.ProgramID == "" {
		return nil, apperr.Validation("program_id", "must be supplied")
	}

	id, err := s.idp.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, apperr.Storage(err)
	}

	var application Application
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner users.User
		if err := tx.Where("id = ?", input.UserID).First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.RefNotFound("user")
			}
			return apperr.Storage(err)
		}

		var program programs.Program
		if err := tx.Where("id = ?", input.ProgramID).First(&program).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.RefNotFound("program")
			}
			return apperr.Storage(err)
		}

		var existing int64
		if err := tx.Model(&Application{}).Where("user_id = ?", input.UserID).Count(&existing).Error; err != nil {
			return apperr.Storage(err)
		}

		now := s.clock().UTC()
		application = Application{
			ID:         id,
			UserID:     input.UserID,
			ProgramID:  input.ProgramID,
			ExternalID: BuildExternalID(program.UniversityName, now.Year(), int(existing)+1),
			Status:     StatusDraft,
			Progress:   0,
			Notes:      input.Notes,
			Deadline:   program.Deadline,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Create(&application).Error; err != nil {
			s.logError(opCreate, "insert_failed", err, zap.String("user_id", input.UserID))
			return apperr.Storage(err)
		}

		entry := activity.Entry{
			UserID:        input.UserID,
			Type:          activity.TypeApplicationCreated,
			Title:         "Started application",
			Description:   fmt.Sprintf("Started application for %s at %s", program.ProgramName, program.UniversityName),
			ApplicationID: application.ID,
			ProgramID:     program.ID,
		}
		if err := s.recorder.Record(tx, entry); err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &application, nil
}

// GetByID returns the application, optionally with its program loaded.
func (s *Service) GetByID(ctx context.Context, id string, view View) (*Application, error) {
	query := s.db.WithContext(ctx)
	if view == ViewWithProgram {
		query = query.Preload("Program")
	}

	var application Application
	err := query.Where("id = ?", id).First(&application).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("application")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &application, nil
}

// List returns one page of applications matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, params listing.Params) (listing.Result[Application], error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return listing.Result[Application]{}, apperr.Validation("status", "unknown status value")
	}

	scopes := make([]listing.Scope, 0, 3)
	if filter.UserID != "" {
		scopes = append(scopes, listing.Equals("user_id", filter.UserID))
	}
	if filter.ProgramID != "" {
		scopes = append(scopes, listing.Equals("program_id", filter.ProgramID))
	}
	if filter.Status != "" {
		scopes = append(scopes, listing.Equals("status", filter.Status))
	}

	result, err := listing.Run[Application](s.db.WithContext(ctx), params, listing.DefaultOrder, scopes...)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return listing.Result[Application]{}, apperr.Storage(err)
	}
	return result, nil
}

// Update applies a partial patch. A status change is recorded on the
// timeline in the same transaction. Transitions other than Submit are not
// constrained here.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Application, error) {
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return nil, apperr.Validation("status", "unknown status value")
	}
	if patch.Progress != nil && (*patch.Progress < 0 || *patch.Progress > 100) {
		return nil, apperr.Validation("progress", "must be between 0 and 100")
	}

	var updated Application
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var application Application
		if err := tx.Where("id = ?", id).First(&application).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("application")
			}
			return apperr.Storage(err)
		}

		statusChanged := false
		if patch.Status != nil && *patch.Status != application.Status {
			application.Status = *patch.Status
			statusChanged = true
		}
		if patch.Progress != nil {
			application.Progress = *patch.Progress
		}
		if patch.Notes != nil {
			application.Notes = *patch.Notes
		}
		if patch.Deadline != nil {
			application.Deadline = patch.Deadline
		}
		if patch.DecisionDate != nil {
			application.DecisionDate = patch.DecisionDate
		}

		application.UpdatedAt = s.clock().UTC()
		if err := tx.Save(&application).Error; err != nil {
			s.logError(opUpdate, "save_failed", err, zap.String("application_id", id))
			return apperr.Storage(err)
		}

		if statusChanged {
			entry := activity.Entry{
				UserID:        application.UserID,
				Type:          activity.TypeApplicationStatusChanged,
				Title:         "Application status changed",
				Description:   fmt.Sprintf("Application %s moved to %s", application.ExternalID, application.Status),
				ApplicationID: application.ID,
			}
			if err := s.recorder.Record(tx, entry); err != nil {
				return apperr.Storage(err)
			}
		}

		updated = application
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &updated, nil
}

// Submit performs the one-way draft-to-submitted transition. Anything but
// a draft is rejected. The state change and its timeline entry commit
// together.
func (s *Service) Submit(ctx context.Context, id string) (*Application, error) {
	var submitted Application
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var application Application
		if err := tx.Where("id = ?", id).First(&application).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("application")
			}
			return apperr.Storage(err)
		}

		if application.Status != StatusDraft {
			return apperr.InvalidTransition(string(application.Status), string(StatusSubmitted))
		}

		now := s.clock().UTC()
		application.Status = StatusSubmitted
		application.SubmittedAt = &now
		application.Progress = submittedProgress
		application.UpdatedAt = now

		if err := tx.Save(&application).Error; err != nil {
			s.logError(opSubmit, "save_failed", err, zap.String("application_id", id))
			return apperr.Storage(err)
		}

		entry := activity.Entry{
			UserID:        application.UserID,
			Type:          activity.TypeApplicationSubmitted,
			Title:         "Application submitted",
			Description:   fmt.Sprintf("Submitted application %s", application.ExternalID),
			ApplicationID: application.ID,
		}
		if err := s.recorder.Record(tx, entry); err != nil {
			return apperr.Storage(err)
		}

		submitted = application
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &submitted, nil
}

// Delete removes the application. Dependent rows let go through SET NULL
// constraints; timeline references are cleared in the same transaction and
// the deletion itself is recorded.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var application Application
		if err := tx.Where("id = ?", id).First(&application).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("application")
			}
			return apperr.Storage(err)
		}

		if err := activity.ClearApplicationRefs(tx, id); err != nil {
			return apperr.Storage(err)
		}
		if err := tx.Delete(&application).Error; err != nil {
			s.logError(opDelete, "delete_failed", err, zap.String("application_id", id))
			return apperr.Storage(err)
		}

		entry := activity.Entry{
			UserID:      application.UserID,
			Type:        activity.TypeApplicationDeleted,
			Title:       "Application deleted",
			Description: fmt.Sprintf("Deleted application %s", application.ExternalID),
		}
		if err := s.recorder.Record(tx, entry); err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
}

// UpcomingDeadlines returns the user's applications with a deadline at or
// after now, soonest first.
func (s *Service) UpcomingDeadlines(ctx context.Context, userID string, limit int) ([]Application, error) {
	if limit < 1 {
		limit = 5
	}
	var rows []Application
	err := s.db.WithContext(ctx).
		Preload("Program").
		Where("user_id = ? AND deadline IS NOT NULL AND deadline >= ?", userID, s.clock().UTC()).
		Order("deadline ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		s.logError(opDeadlines, "query_failed", err, zap.String("user_id", userID))
		return nil, apperr.Storage(err)
	}
	return rows, nil
}

// StatusCounts aggregates the user's applications by status.
type StatusCounts struct {
	Total    int64
	ByStatus map[Status]int64
}

// CountByStatus returns how many applications the user has in each status.
func (s *Service) CountByStatus(ctx context.Context, userID string) (StatusCounts, error) {
	type bucket struct {
		Status Status
		Count  int64
	}
	var buckets []bucket
	err := s.db.WithContext(ctx).Model(&Application{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&buckets).Error
	if err != nil {
		s.logError(opStats, "query_failed", err, zap.String("user_id", userID))
		return StatusCounts{}, apperr.Storage(err)
	}

	counts := StatusCounts{ByStatus: make(map[Status]int64, len(buckets))}
	for _, b := range buckets {
		counts.ByStatus[b.Status] = b.Count
		counts.Total += b.Count
	}
	return counts, nil
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
	s.logger.Error("applications service error", attrs...)
}
