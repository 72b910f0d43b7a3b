package programs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	next int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("program-%03d", g.next), nil
}

func newTestService(t *testing.T) (*programs.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:programs_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &programs.Program{}, &applications.Application{}, &activity.Activity{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	base := time.Unix(1700000000, 0).UTC()
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	service, err := programs.NewService(programs.ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &staticIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct program service: %v", err)
	}
	return service, db
}

func seedProgram(t *testing.T, service *programs.Service, university, name string, deadline *time.Time) *programs.Program {
	t.Helper()
	program, err := service.Create(context.Background(), programs.CreateInput{
		UniversityName: university,
		ProgramName:    name,
		DegreeType:     "Master",
		Country:        "Canada",
		Deadline:       deadline,
	})
	if err != nil {
		t.Fatalf("failed to seed program: %v", err)
	}
	return program
}

func deadlineAt(offset time.Duration) *time.Time {
	value := time.Unix(1710000000, 0).UTC().Add(offset)
	return &value
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	service, _ := newTestService(t)

	tests := []struct {
		name  string
		input programs.CreateInput
		field string
	}{
		{name: "university", input: programs.CreateInput{ProgramName: "CS", DegreeType: "Master", Country: "Canada"}, field: "university_name"},
		{name: "program", input: programs.CreateInput{UniversityName: "Example University", DegreeType: "Master", Country: "Canada"}, field: "program_name"},
		{name: "degree", input: programs.CreateInput{UniversityName: "Example University", ProgramName: "CS", Country: "Canada"}, field: "degree_type"},
		{name: "country", input: programs.CreateInput{UniversityName: "Example University", ProgramName: "CS", DegreeType: "Master"}, field: "country"},
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

func TestListSearchSpansCatalogColumns(t *testing.T) {
	service, _ := newTestService(t)
	seedProgram(t, service, "Example University", "Computer Science", nil)
	seedProgram(t, service, "Other College", "Data Science", nil)
	seedProgram(t, service, "Third School", "History", nil)

	result, err := service.List(context.Background(), programs.ListFilter{Search: "science"}, listing.Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", result.Total)
	}

	byUniversity, err := service.List(context.Background(), programs.ListFilter{Search: "example"}, listing.Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byUniversity.Total != 1 {
		t.Fatalf("expected university name to match, got %d", byUniversity.Total)
	}
}

func TestListOrdersByDeadlineWhenRequested(t *testing.T) {
	service, _ := newTestService(t)
	seedProgram(t, service, "Later University", "CS", deadlineAt(48*time.Hour))
	seedProgram(t, service, "Sooner University", "CS", deadlineAt(2*time.Hour))

	result, err := service.List(context.Background(), programs.ListFilter{Sort: programs.SortDeadlineAscending}, listing.Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("unexpected item count %d", len(result.Items))
	}
	if result.Items[0].UniversityName != "Sooner University" {
		t.Fatalf("expected soonest deadline first, got %q", result.Items[0].UniversityName)
	}
}

func TestUpdatePartialPatch(t *testing.T) {
	service, _ := newTestService(t)
	program := seedProgram(t, service, "Example University", "CS", nil)

	fee := "$125"
	updated, err := service.Update(context.Background(), program.ID, programs.Patch{ApplicationFee: &fee})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ApplicationFee != "$125" {
		t.Fatalf("expected fee to change")
	}
	if updated.UniversityName != program.UniversityName || updated.ProgramName != program.ProgramName {
		t.Fatalf("unsupplied fields must retain prior values")
	}
	if !updated.UpdatedAt.After(program.UpdatedAt) {
		t.Fatalf("updated_at must advance")
	}

	if _, err := service.Update(context.Background(), "missing", programs.Patch{ApplicationFee: &fee}); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestDeleteProgram(t *testing.T) {
	service, db := newTestService(t)
	program := seedProgram(t, service, "Example University", "CS", nil)

	if err := service.Delete(context.Background(), program.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int64
	if err := db.Model(&programs.Program{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count programs: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected program to be removed")
	}

	if err := service.Delete(context.Background(), program.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found on second delete, got %v", err)
	}
}
