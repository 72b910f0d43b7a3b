package integration_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/database"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/notifications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fixture struct {
	db            *gorm.DB
	users         *users.Service
	posts         *posts.Service
	programs      *programs.Service
	applications  *applications.Service
	documents     *documents.Service
	notifications *notifications.Service
	recorder      *activity.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "integration.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	provider := ids.NewUUIDProvider()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	recorder, err := activity.NewRecorder(activity.RecorderConfig{Database: db, IDProvider: provider})
	if err != nil {
		t.Fatalf("failed to construct recorder: %v", err)
	}
	usersService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: provider, Hasher: hasher})
	if err != nil {
		t.Fatalf("failed to construct users service: %v", err)
	}
	postsService, err := posts.NewService(posts.ServiceConfig{Database: db, IDProvider: provider})
	if err != nil {
		t.Fatalf("failed to construct posts service: %v", err)
	}
	programsService, err := programs.NewService(programs.ServiceConfig{Database: db, IDProvider: provider})
	if err != nil {
		t.Fatalf("failed to construct programs service: %v", err)
	}
	applicationsService, err := applications.NewService(applications.ServiceConfig{Database: db, IDProvider: provider, Recorder: recorder})
	if err != nil {
		t.Fatalf("failed to construct applications service: %v", err)
	}
	documentsService, err := documents.NewService(documents.ServiceConfig{Database: db, IDProvider: provider, Recorder: recorder})
	if err != nil {
		t.Fatalf("failed to construct documents service: %v", err)
	}
	notificationsService, err := notifications.NewService(notifications.ServiceConfig{Database: db, IDProvider: provider})
	if err != nil {
		t.Fatalf("failed to construct notifications service: %v", err)
	}

	return &fixture{
		db:            db,
		users:         usersService,
		posts:         postsService,
		programs:      programsService,
		applications:  applicationsService,
		documents:     documentsService,
		notifications: notificationsService,
		recorder:      recorder,
	}
}

func (f *fixture) registerUser(t *testing.T, username string) *users.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), users.CreateInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func (f *fixture) addProgram(t *testing.T, university string) *programs.Program {
	t.Helper()
	program, err := f.programs.Create(context.Background(), programs.CreateInput{
		UniversityName: university,
		ProgramName:    "Computer Science",
		DegreeType:     "Master",
		Country:        "Canada",
	})
	if err != nil {
		t.Fatalf("failed to create program: %v", err)
	}
	return program
}

func countRows(t *testing.T, db *gorm.DB, model any, condition string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Where(condition, args...).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

func TestUserDeletionCascadesOwnedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.registerUser(t, "alice")
	bystander := f.registerUser(t, "bob")
	program := f.addProgram(t, "Example University")

	application, err := f.applications.Create(ctx, applications.CreateInput{UserID: user.ID, ProgramID: program.ID})
	if err != nil {
		t.Fatalf("failed to create application: %v", err)
	}
	if _, err := f.documents.Create(ctx, documents.CreateInput{UserID: user.ID, ApplicationID: application.ID, Name: "Transcript"}); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	if _, err := f.posts.Create(ctx, posts.CreateInput{AuthorID: user.ID, Title: "Hello", Content: "World"}); err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	if _, err := f.notifications.Create(ctx, notifications.CreateInput{UserID: user.ID, Title: "Welcome"}); err != nil {
		t.Fatalf("failed to create notification: %v", err)
	}
	if _, err := f.posts.Create(ctx, posts.CreateInput{AuthorID: bystander.ID, Title: "Other", Content: "Post"}); err != nil {
		t.Fatalf("failed to create bystander post: %v", err)
	}

	if err := f.users.Delete(ctx, user.ID); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}

	checks := []struct {
		name  string
		model any
	}{
		{"applications", &applications.Application{}},
		{"documents", &documents.Document{}},
		{"posts", &posts.Post{}},
		{"notifications", &notifications.Notification{}},
		{"activities", &activity.Activity{}},
	}
	for _, check := range checks {
		condition := "user_id = ?"
		if check.name == "posts" {
			condition = "author_id = ?"
		}
		if remaining := countRows(t, f.db, check.model, condition, user.ID); remaining != 0 {
			t.Fatalf("expected %s of the deleted user to be gone, found %d", check.name, remaining)
		}
	}

	if remaining := countRows(t, f.db, &posts.Post{}, "author_id = ?", bystander.ID); remaining != 1 {
		t.Fatalf("bystander rows must survive, found %d", remaining)
	}
	if remaining := countRows(t, f.db, &programs.Program{}, "id = ?", program.ID); remaining != 1 {
		t.Fatalf("the shared catalog must survive user deletion")
	}
}

func TestApplicationDeletionReleasesDocumentLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.registerUser(t, "alice")
	program := f.addProgram(t, "Example University")

	application, err := f.applications.Create(ctx, applications.CreateInput{UserID: user.ID, ProgramID: program.ID})
	if err != nil {
		t.Fatalf("failed to create application: %v", err)
	}
	document, err := f.documents.Create(ctx, documents.CreateInput{UserID: user.ID, ApplicationID: application.ID, Name: "Transcript"})
	if err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	if err := f.applications.Delete(ctx, application.ID); err != nil {
		t.Fatalf("failed to delete application: %v", err)
	}

	reloaded, err := f.documents.GetByID(ctx, document.ID)
	if err != nil {
		t.Fatalf("the document must survive application deletion: %v", err)
	}
	if reloaded.ApplicationID != nil {
		t.Fatalf("expected the application link to be released, got %v", *reloaded.ApplicationID)
	}
}

func TestProgramDeletionClearsTimelineReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.registerUser(t, "alice")
	program := f.addProgram(t, "Example University")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.recorder.Record(tx, activity.Entry{
			UserID:    user.ID,
			Type:      activity.TypeApplicationCreated,
			Title:     "Considering a program",
			ProgramID: program.ID,
		})
	})
	if err != nil {
		t.Fatalf("failed to record entry: %v", err)
	}

	application, err := f.applications.Create(ctx, applications.CreateInput{UserID: user.ID, ProgramID: program.ID})
	if err != nil {
		t.Fatalf("failed to create application: %v", err)
	}

	if err := f.programs.Delete(ctx, program.ID); err != nil {
		t.Fatalf("failed to delete program: %v", err)
	}

	if remaining := countRows(t, f.db, &activity.Activity{}, "related_program_id = ?", program.ID); remaining != 0 {
		t.Fatalf("timeline references to the deleted program must be cleared, found %d", remaining)
	}
	// The application cascaded with its program, so its timeline link
	// must be released too.
	if remaining := countRows(t, f.db, &applications.Application{}, "id = ?", application.ID); remaining != 0 {
		t.Fatalf("the application must cascade with its program, found %d", remaining)
	}
	if remaining := countRows(t, f.db, &activity.Activity{}, "related_application_id = ?", application.ID); remaining != 0 {
		t.Fatalf("timeline references to the cascaded application must be cleared, found %d", remaining)
	}
	if remaining := countRows(t, f.db, &activity.Activity{}, "user_id = ?", user.ID); remaining != 2 {
		t.Fatalf("the timeline rows themselves must survive, found %d", remaining)
	}
}

func TestSubmittedTimelineSurvivesDeadlinePassing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.registerUser(t, "alice")

	deadline := time.Now().UTC().Add(48 * time.Hour)
	program, err := f.programs.Create(ctx, programs.CreateInput{
		UniversityName: "Example University",
		ProgramName:    "Computer Science",
		DegreeType:     "Master",
		Country:        "Canada",
		Deadline:       &deadline,
	})
	if err != nil {
		t.Fatalf("failed to create program: %v", err)
	}

	application, err := f.applications.Create(ctx, applications.CreateInput{UserID: user.ID, ProgramID: program.ID})
	if err != nil {
		t.Fatalf("failed to create application: %v", err)
	}

	upcoming, err := f.applications.UpcomingDeadlines(ctx, user.ID, 5)
	if err != nil {
		t.Fatalf("failed to list deadlines: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != application.ID {
		t.Fatalf("expected the new application in upcoming deadlines, got %d rows", len(upcoming))
	}
	if upcoming[0].Program.UniversityName != "Example University" {
		t.Fatalf("expected the program to be loaded alongside the deadline")
	}
}

func TestPerUserExternalIDSequencesAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	program := f.addProgram(t, "Example University")

	year := time.Now().UTC().Year()
	for i := 1; i <= 2; i++ {
		application, err := f.applications.Create(ctx, applications.CreateInput{UserID: alice.ID, ProgramID: program.ID})
		if err != nil {
			t.Fatalf("failed to create application: %v", err)
		}
		expected := fmt.Sprintf("EXA-%d-%03d", year, i)
		if application.ExternalID != expected {
			t.Fatalf("expected %s, got %s", expected, application.ExternalID)
		}
	}

	application, err := f.applications.Create(ctx, applications.CreateInput{UserID: bob.ID, ProgramID: program.ID})
	if err != nil {
		t.Fatalf("failed to create application: %v", err)
	}
	if expected := fmt.Sprintf("EXA-%d-001", year); application.ExternalID != expected {
		t.Fatalf("sequences must be per user: expected %s, got %s", expected, application.ExternalID)
	}
}
