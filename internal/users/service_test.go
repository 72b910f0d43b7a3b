package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	prefix string
	next   int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%03d", g.prefix, g.next), nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:users_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	base := time.Unix(1700000000, 0).UTC()
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &staticIDGenerator{prefix: "user"},
		Hasher:     auth.NewPasswordHasher(bcrypt.MinCost),
	})
	if err != nil {
		t.Fatalf("failed to construct user service: %v", err)
	}
	return service, db
}

func mustCreate(t *testing.T, service *Service, username, email string) *User {
	t.Helper()
	user, err := service.Create(context.Background(), CreateInput{
		Username: username,
		Email:    email,
		Password: "long enough password",
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func TestCreateNormalizesAndPersists(t *testing.T) {
	service, db := newTestService(t)

	user, err := service.Create(context.Background(), CreateInput{
		Username: "  alice  ",
		Email:    "  Alice@X.COM ",
		Password: "long enough password",
		FullName: "Alice Adams",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected server-assigned id")
	}
	if user.Username != "alice" {
		t.Fatalf("expected trimmed username, got %q", user.Username)
	}
	if user.Email != "alice@x.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Role != RoleStudent {
		t.Fatalf("expected default role, got %q", user.Role)
	}
	if !user.IsActive {
		t.Fatalf("new accounts must start active")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Fatalf("expected server-assigned timestamps")
	}
	if user.HashedPassword == "long enough password" {
		t.Fatalf("password must be stored hashed")
	}

	var stored User
	if err := db.First(&stored, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed to load stored user: %v", err)
	}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	service, _ := newTestService(t)

	tests := []struct {
		name  string
		input CreateInput
		field string
	}{
		{name: "empty-username", input: CreateInput{Username: "   ", Email: "a@x.com", Password: "long enough pw"}, field: "username"},
		{name: "empty-email", input: CreateInput{Username: "alice", Email: "  ", Password: "long enough pw"}, field: "email"},
		{name: "malformed-email", input: CreateInput{Username: "alice", Email: "not-an-email", Password: "long enough pw"}, field: "email"},
		{name: "short-password", input: CreateInput{Username: "alice", Email: "a@x.com", Password: "short"}, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), tt.input)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if apperr.FieldOf(err) != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, apperr.FieldOf(err))
			}
		})
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	service, db := newTestService(t)
	existing := mustCreate(t, service, "alice", "a@x.com")

	_, err := service.Create(context.Background(), CreateInput{
		Username: "alice",
		Email:    "other@x.com",
		Password: "long enough password",
	})
	if !apperr.IsKind(err, apperr.KindDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if apperr.FieldOf(err) != "username" {
		t.Fatalf("expected conflicting field username, got %q", apperr.FieldOf(err))
	}

	_, err = service.Create(context.Background(), CreateInput{
		Username: "alice2",
		Email:    "a@x.com",
		Password: "long enough password",
	})
	if !apperr.IsKind(err, apperr.KindDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if apperr.FieldOf(err) != "email" {
		t.Fatalf("expected conflicting field email, got %q", apperr.FieldOf(err))
	}

	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if count != 1 {
		t.Fatalf("pre-existing row must be unaffected, found %d rows", count)
	}

	var stored User
	if err := db.First(&stored, "id = ?", existing.ID).Error; err != nil {
		t.Fatalf("failed to reload existing user: %v", err)
	}
	if stored.Email != "a@x.com" {
		t.Fatalf("existing row changed: %q", stored.Email)
	}
}

func TestUpdateAppliesOnlySuppliedFields(t *testing.T) {
	service, _ := newTestService(t)
	created := mustCreate(t, service, "alice", "a@x.com")

	bio := "studies abroad"
	updated, err := service.Update(context.Background(), created.ID, Patch{Bio: &bio})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Bio != bio {
		t.Fatalf("expected bio to change, got %q", updated.Bio)
	}
	if updated.Username != created.Username || updated.Email != created.Email {
		t.Fatalf("unsupplied fields must retain prior values")
	}
	if updated.FullName != created.FullName || updated.IsActive != created.IsActive {
		t.Fatalf("unsupplied fields must retain prior values")
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at must advance on mutation")
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at must never change")
	}
}

func TestUpdateRevalidatesChangedUniqueFields(t *testing.T) {
	service, _ := newTestService(t)
	alice := mustCreate(t, service, "alice", "a@x.com")
	mustCreate(t, service, "bob", "b@x.com")

	taken := "b@x.com"
	_, err := service.Update(context.Background(), alice.ID, Patch{Email: &taken})
	if !apperr.IsKind(err, apperr.KindDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if apperr.FieldOf(err) != "email" {
		t.Fatalf("expected conflicting field email, got %q", apperr.FieldOf(err))
	}

	// Re-submitting the current value is not a conflict.
	own := "a@x.com"
	updated, err := service.Update(context.Background(), alice.ID, Patch{Email: &own})
	if err != nil {
		t.Fatalf("updating to own current value must succeed, got %v", err)
	}
	if updated.Email != "a@x.com" {
		t.Fatalf("unexpected email %q", updated.Email)
	}
}

func TestUpdateMissingUserReturnsNotFound(t *testing.T) {
	service, _ := newTestService(t)
	name := "ghost"
	_, err := service.Update(context.Background(), "no-such-id", Patch{Username: &name})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	service, _ := newTestService(t)
	mustCreate(t, service, "alice", "a@x.com")
	bob := mustCreate(t, service, "bob", "b@x.com")

	first, err := service.List(context.Background(), ListFilter{}, listing.Params{Page: 1, PageSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Total != 2 || first.Pages != 2 {
		t.Fatalf("unexpected pagination total=%d pages=%d", first.Total, first.Pages)
	}
	if len(first.Items) != 1 || first.Items[0].ID != bob.ID {
		t.Fatalf("expected most recently created user first")
	}

	second, err := service.List(context.Background(), ListFilter{}, listing.Params{Page: 2, PageSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].Username != "alice" {
		t.Fatalf("expected the other user on page 2")
	}

	third, err := service.List(context.Background(), ListFilter{}, listing.Params{Page: 3, PageSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(third.Items) != 0 {
		t.Fatalf("page past the end must be empty")
	}
	if third.Total != 2 {
		t.Fatalf("page past the end must keep the true total, got %d", third.Total)
	}
}

func TestListFilters(t *testing.T) {
	service, _ := newTestService(t)
	alice := mustCreate(t, service, "alice", "alice@x.com")
	mustCreate(t, service, "bob", "bob@x.com")

	inactive := false
	if _, err := service.Update(context.Background(), alice.ID, Patch{IsActive: &inactive}); err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}

	byName, err := service.List(context.Background(), ListFilter{Username: "ALI"}, listing.Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byName.Total != 1 || byName.Items[0].Username != "alice" {
		t.Fatalf("case-insensitive contains filter failed: %#v", byName.Items)
	}

	active := true
	byFlag, err := service.List(context.Background(), ListFilter{IsActive: &active}, listing.Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byFlag.Total != 1 || byFlag.Items[0].Username != "bob" {
		t.Fatalf("equality filter failed: %#v", byFlag.Items)
	}
}

func TestAuthenticate(t *testing.T) {
	service, _ := newTestService(t)
	created := mustCreate(t, service, "alice", "a@x.com")

	user, err := service.Authenticate(context.Background(), "A@X.com", "long enough password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("unexpected user %s", user.ID)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be stamped")
	}

	if _, err := service.Authenticate(context.Background(), "a@x.com", "wrong password"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for bad password, got %v", err)
	}

	inactive := false
	if _, err := service.Update(context.Background(), created.ID, Patch{IsActive: &inactive}); err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "a@x.com", "long enough password"); err == nil {
		t.Fatalf("expected deactivated account to be rejected")
	}
}

func TestGetLookups(t *testing.T) {
	service, _ := newTestService(t)
	created := mustCreate(t, service, "alice", "a@x.com")

	byEmail, err := service.GetByEmail(context.Background(), "  A@x.COM ")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("email lookup failed: %v", err)
	}
	byName, err := service.GetByUsername(context.Background(), "alice")
	if err != nil || byName.ID != created.ID {
		t.Fatalf("username lookup failed: %v", err)
	}
	if _, err := service.GetByID(context.Background(), "missing"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestDeleteMissingUser(t *testing.T) {
	service, _ := newTestService(t)
	err := service.Delete(context.Background(), "missing")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("store-level errors must not leak through the service boundary")
	}
}
