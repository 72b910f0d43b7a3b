package programs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	opCreate = "programs.create"
	opList   = "programs.list"
	opUpdate = "programs.update"
	opDelete = "programs.delete"

	deadlineOrder = "deadline ASC, id ASC"
)

// ServiceConfig describes the dependencies of the program catalog service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service manages the program catalog.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	idp    ids.Provider
	logger *zap.Logger
}

// NewService constructs the program catalog service.
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

// Create adds a catalog entry.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Program, error) {
	university := strings.TrimSpace(input.UniversityName)
	name := strings.TrimSpace(input.ProgramName)
	degree := strings.TrimSpace(input.DegreeType)
	country := strings.TrimSpace(input.Country)

	if university == "" {
		return nil, apperr.Validation("university_name", "must not be empty")
	}
	if name == "" {
		return nil, apperr.Validation("program_name", "must not be empty")
	}
	if degree == "" {
		return nil, apperr.Validation("degree_type", "must not be empty")
	}
	if country == "" {
		return nil, apperr.Validation("country", "must not be empty")
	}

	id, err := s.idp.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, apperr.Storage(err)
	}

	now := s.clock().UTC()
	program := Program{
		ID:             id,
		UniversityName: university,
		ProgramName:    name,
		DegreeType:     degree,
		Country:        country,
		City:           strings.TrimSpace(input.City),
		Description:    input.Description,
		ApplicationFee: strings.TrimSpace(input.ApplicationFee),
		TuitionPerYear: strings.TrimSpace(input.TuitionPerYear),
		DurationMonths: input.DurationMonths,
		Deadline:       input.Deadline,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.WithContext(ctx).Create(&program).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("university", university))
		return nil, apperr.Storage(err)
	}
	return &program, nil
}

// GetByID returns the catalog entry or a NotFound error.
func (s *Service) GetByID(ctx context.Context, id string) (*Program, error) {
	var program Program
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&program).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("program")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &program, nil
}

// List returns one page of the catalog matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, params listing.Params) (listing.Result[Program], error) {
	scopes := make([]listing.Scope, 0, 3)
	if filter.Search != "" {
		scopes = append(scopes, listing.Search(filter.Search, "university_name", "program_name", "description"))
	}
	if filter.Country != "" {
		scopes = append(scopes, listing.Contains("country", filter.Country))
	}
	if filter.DegreeType != "" {
		scopes = append(scopes, listing.Equals("degree_type", filter.DegreeType))
	}

	order := listing.DefaultOrder
	if filter.Sort == SortDeadlineAscending {
		order = deadlineOrder
	}

	result, err := listing.Run[Program](s.db.WithContext(ctx), params, order, scopes...)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return listing.Result[Program]{}, apperr.Storage(err)
	}
	return result, nil
}

// Update applies a partial patch.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Program, error) {
	var updated Program
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var program Program
		if err := tx.Where("id = ?", id).First(&program).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("program")
			}
			return apperr.Storage(err)
		}

		if patch.UniversityName != nil {
			university := strings.TrimSpace(*patch.UniversityName)
			if university == "" {
				return apperr.Validation("university_name", "must not be empty")
			}
			program.UniversityName = university
		}
		if patch.ProgramName != nil {
			name := strings.TrimSpace(*patch.ProgramName)
			if name == "" {
				return apperr.Validation("program_name", "must not be empty")
			}
			program.ProgramName = name
		}
		if patch.DegreeType != nil {
			program.DegreeType = strings.TrimSpace(*patch.DegreeType)
		}
		if patch.Country != nil {
			program.Country = strings.TrimSpace(*patch.Country)
		}
		if patch.City != nil {
			program.City = strings.TrimSpace(*patch.City)
		}
		if patch.Description != nil {
			program.Description = *patch.Description
		}
		if patch.ApplicationFee != nil {
			program.ApplicationFee = strings.TrimSpace(*patch.ApplicationFee)
		}
		if patch.TuitionPerYear != nil {
			program.TuitionPerYear = strings.TrimSpace(*patch.TuitionPerYear)
		}
		if patch.DurationMonths != nil {
			program.DurationMonths = *patch.DurationMonths
		}
		if patch.Deadline != nil {
			program.Deadline = patch.Deadline
		}

		program.UpdatedAt = s.clock().UTC()
		if err := tx.Save(&program).Error; err != nil {
			s.logError(opUpdate, "save_failed", err, zap.String("program_id", id))
			return apperr.Storage(err)
		}
		updated = program
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &updated, nil
}

// Delete removes the catalog entry. Applications referencing it cascade;
// timeline references to it are cleared in the same transaction.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var program Program
		if err := tx.Where("id = ?", id).First(&program).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("program")
			}
			return apperr.Storage(err)
		}
		if err := activity.ClearProgramRefs(tx, id); err != nil {
			return apperr.Storage(err)
		}
		if err := activity.ClearApplicationRefsByProgram(tx, id); err != nil {
			return apperr.Storage(err)
		}
		if err := tx.Delete(&program).Error; err != nil {
			s.logError(opDelete, "delete_failed", err, zap.String("program_id", id))
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
	s.logger.Error("programs service error", attrs...)
}
