package posts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	opCreate = "posts.create"
	opList   = "posts.list"
	opUpdate = "posts.update"
	opDelete = "posts.delete"
)

// ServiceConfig describes the dependencies of the post service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service manages blog posts.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	idp    ids.Provider
	logger *zap.Logger
}

// NewService constructs the post service.
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

// Create validates the input, verifies the author exists and persists the
// post.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Post, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)

	if title == "" {
		return nil, apperr.Validation("title", "must not be empty")
	}
	if content == "" {
		return nil, apperr.Validation("content", "must not be empty")
	}
	if input.AuthorID == "" {
		return nil, apperr.Validation("author_id", "must be supplied")
	}

	id, err := s.idp.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, apperr.Storage(err)
	}

	now := s.clock().UTC()
	post := Post{
		ID:        id,
		AuthorID:  input.AuthorID,
		Title:     title,
		Content:   content,
		Published: input.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author users.User
		if err := tx.Where("id = ?", input.AuthorID).First(&author).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.RefNotFound("author")
			}
			return apperr.Storage(err)
		}
		if err := tx.Create(&post).Error; err != nil {
			s.logError(opCreate, "insert_failed", err, zap.String("author_id", input.AuthorID))
			return apperr.Storage(err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &post, nil
}

// GetByID returns the post, optionally with its author loaded.
func (s *Service) GetByID(ctx context.Context, id string, view View) (*Post, error) {
	query := s.db.WithContext(ctx)
	if view == ViewWithAuthor {
		query = query.Preload("Author")
	}

	var post Post
	err := query.Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("post")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &post, nil
}

// List returns one page of posts matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, params listing.Params) (listing.Result[Post], error) {
	scopes := make([]listing.Scope, 0, 3)
	if filter.AuthorID != "" {
		scopes = append(scopes, listing.Equals("author_id", filter.AuthorID))
	}
	if filter.Published != nil {
		scopes = append(scopes, listing.Equals("published", *filter.Published))
	}
	if filter.Search != "" {
		scopes = append(scopes, listing.Search(filter.Search, "title", "content"))
	}

	result, err := listing.Run[Post](s.db.WithContext(ctx), params, listing.DefaultOrder, scopes...)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return listing.Result[Post]{}, apperr.Storage(err)
	}
	return result, nil
}

// Update applies a partial patch and refreshes updated_at.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Post, error) {
	var updated Post
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("post")
			}
			return apperr.Storage(err)
		}

		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return apperr.Validation("title", "must not be empty")
			}
			post.Title = title
		}
		if patch.Content != nil {
			content := strings.TrimSpace(*patch.Content)
			if content == "" {
				return apperr.Validation("content", "must not be empty")
			}
			post.Content = content
		}
		if patch.Published != nil {
			post.Published = *patch.Published
		}

		post.UpdatedAt = s.clock().UTC()
		if err := tx.Save(&post).Error; err != nil {
			s.logError(opUpdate, "save_failed", err, zap.String("post_id", id))
			return apperr.Storage(err)
		}
		updated = post
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &updated, nil
}

// Delete removes the post.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("post")
			}
			return apperr.Storage(err)
		}
		if err := tx.Delete(&post).Error; err != nil {
			s.logError(opDelete, "delete_failed", err, zap.String("post_id", id))
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
	s.logger.Error("posts service error", attrs...)
}
