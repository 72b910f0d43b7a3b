package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingHasher     = errors.New("password hasher is required")
	noOpLogger           = zap.NewNop()
)

const (
	opCreate       = "users.create"
	opAuthenticate = "users.authenticate"
	opList         = "users.list"
	opUpdate       = "users.update"
	opDelete       = "users.delete"
)

// ServiceConfig describes the dependencies of the user service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Hasher     *auth.PasswordHasher
	Logger     *zap.Logger
}

// Service manages user accounts.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	idp    ids.Provider
	hasher *auth.PasswordHasher
	logger *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Hasher == nil {
		return nil, errMissingHasher
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:     cfg.Database,
		clock:  clock,
		idp:    cfg.IDProvider,
		hasher: cfg.Hasher,
		logger: logger,
	}, nil
}

// Create registers a new account. Username and email must be unique; the
// pre-check produces a field-level error, the unique constraint remains the
// actual enforcement for concurrent writers.
func (s *Service) Create(ctx context.Context, input CreateInput) (*User, error) {
	username := strings.TrimSpace(input.Username)
	email := NormalizeEmail(input.Email)

	if username == "" {
		return nil, apperr.Validation("username", "must not be empty")
	}
	if len(username) > 50 {
		return nil, apperr.Validation("username", "must not exceed 50 characters")
	}
	if email == "" {
		return nil, apperr.Validation("email", "must not be empty")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("email", "must be a valid address")
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, apperr.Validation("password", err.Error())
		}
		return nil, apperr.Storage(err)
	}

	role := input.Role
	if role == "" {
		role = RoleStudent
	}

	id, err := s.idp.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, apperr.Storage(err)
	}

	now := s.clock().UTC()
	user := User{
		ID:             id,
		Username:       username,
		Email:          email,
		FullName:       strings.TrimSpace(input.FullName),
		HashedPassword: digest,
		Role:           role,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if field, taken, err := takenField(tx, username, email, ""); err != nil {
			s.logError(opCreate, "uniqueness_check_failed", err, zap.String("username", username))
			return apperr.Storage(err)
		} else if taken {
			return apperr.Duplicate(field)
		}
		if err := tx.Create(&user).Error; err != nil {
			return s.mapWriteError(opCreate, tx, err, username, email, "")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &user, nil
}

// GetByID returns the user or a NotFound error.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getOne(ctx, "id = ?", id)
}

// GetByUsername performs an exact-match lookup on the unique username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getOne(ctx, "username = ?", strings.TrimSpace(username))
}

// GetByEmail performs an exact-match lookup on the unique email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, "email = ?", NormalizeEmail(email))
}

func (s *Service) getOne(ctx context.Context, condition string, value string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where(condition, value).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &user, nil
}

// Authenticate verifies the password for an email and stamps the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Validation("email", "account is deactivated")
	}
	if !s.hasher.Compare(user.HashedPassword, password) {
		return nil, apperr.Validation("password", "invalid credentials")
	}

	now := s.clock().UTC()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(user).Update("last_login_at", now).Error; err != nil {
		s.logError(opAuthenticate, "last_login_update_failed", err, zap.String("user_id", user.ID))
		return nil, apperr.Storage(err)
	}
	return user, nil
}

// List returns one page of accounts matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, params listing.Params) (listing.Result[User], error) {
	scopes := make([]listing.Scope, 0, 3)
	if filter.Username != "" {
		scopes = append(scopes, listing.Contains("username", filter.Username))
	}
	if filter.Email != "" {
		scopes = append(scopes, listing.Contains("email", filter.Email))
	}
	if filter.IsActive != nil {
		scopes = append(scopes, listing.Equals("is_active", *filter.IsActive))
	}

	result, err := listing.Run[User](s.db.WithContext(ctx), params, listing.DefaultOrder, scopes...)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return listing.Result[User]{}, apperr.Storage(err)
	}
	return result, nil
}

// Update applies a partial patch. Changed unique fields are re-validated
// against all other rows; an unchanged value is accepted as-is.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*User, error) {
	var updated User
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user")
			}
			return apperr.Storage(err)
		}

		checkUsername := user.Username
		checkEmail := user.Email

		if patch.Username != nil {
			username := strings.TrimSpace(*patch.Username)
			if username == "" {
				return apperr.Validation("username", "must not be empty")
			}
			if len(username) > 50 {
				return apperr.Validation("username", "must not exceed 50 characters")
			}
			user.Username = username
			checkUsername = username
		}
		if patch.Email != nil {
			email := NormalizeEmail(*patch.Email)
			if email == "" || !strings.Contains(email, "@") {
				return apperr.Validation("email", "must be a valid address")
			}
			user.Email = email
			checkEmail = email
		}

		if patch.Username != nil || patch.Email != nil {
			if field, taken, err := takenField(tx, checkUsername, checkEmail, user.ID); err != nil {
				s.logError(opUpdate, "uniqueness_check_failed", err, zap.String("user_id", id))
				return apperr.Storage(err)
			} else if taken {
				return apperr.Duplicate(field)
			}
		}

		if patch.Password != nil {
			digest, err := s.hasher.Hash(*patch.Password)
			if err != nil {
				if errors.Is(err, auth.ErrPasswordTooShort) {
					return apperr.Validation("password", err.Error())
				}
				return apperr.Storage(err)
			}
			user.HashedPassword = digest
		}
		if patch.FullName != nil {
			user.FullName = strings.TrimSpace(*patch.FullName)
		}
		if patch.Phone != nil {
			user.Phone = strings.TrimSpace(*patch.Phone)
		}
		if patch.Location != nil {
			user.Location = strings.TrimSpace(*patch.Location)
		}
		if patch.Bio != nil {
			user.Bio = *patch.Bio
		}
		if patch.IsActive != nil {
			user.IsActive = *patch.IsActive
		}
		if patch.IsVerified != nil {
			user.IsVerified = *patch.IsVerified
		}

		user.UpdatedAt = s.clock().UTC()
		if err := tx.Save(&user).Error; err != nil {
			return s.mapWriteError(opUpdate, tx, err, user.Username, user.Email, user.ID)
		}
		updated = user
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &updated, nil
}

// Delete removes the account. Owned posts, applications, documents,
// notifications and activities go with it via the cascade constraints.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user")
			}
			return apperr.Storage(err)
		}
		if err := tx.Delete(&user).Error; err != nil {
			s.logError(opDelete, "delete_failed", err, zap.String("user_id", id))
			return apperr.Storage(err)
		}
		return nil
	})
}

// takenField reports which unique field collides with another row, if any.
// An empty excludeID checks against every row.
func takenField(tx *gorm.DB, username, email, excludeID string) (string, bool, error) {
	query := tx.Where("username = ? OR email = ?", username, email)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var existing User
	err := query.First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if existing.Username == username {
		return "username", true, nil
	}
	return "email", true, nil
}

// mapWriteError classifies a failed insert or save. A translated duplicate
// key error from the store is resolved back to the conflicting field, which
// covers the race two concurrent writers lose to the constraint.
func (s *Service) mapWriteError(operation string, tx *gorm.DB, err error, username, email, excludeID string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if field, taken, lookupErr := takenField(tx, username, email, excludeID); lookupErr == nil && taken {
			return apperr.Duplicate(field)
		}
		return apperr.Duplicate("username")
	}
	s.logError(operation, "write_failed", err, zap.String("username", username))
	return apperr.Storage(err)
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
	s.logger.Error("users service error", attrs...)
}
