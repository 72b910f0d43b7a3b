package applications

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
)

// Status enumerates the application lifecycle.
type Status string

const (
	// StatusDraft is the initial state of every application.
	StatusDraft Status = "draft"
	// StatusSubmitted is entered through Submit and never left back to draft.
	StatusSubmitted Status = "submitted"
	// StatusUnderReview marks an application being evaluated.
	StatusUnderReview Status = "under_review"
	// StatusOfferReceived marks a successful outcome.
	StatusOfferReceived Status = "offer_received"
	// StatusRejected marks an unsuccessful outcome.
	StatusRejected Status = "rejected"
	// StatusWithdrawn marks a withdrawal by the applicant.
	StatusWithdrawn Status = "withdrawn"
)

// ValidStatus reports whether the value is a member of the enumeration.
func ValidStatus(status Status) bool {
	switch status {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusOfferReceived, StatusRejected, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// Application tracks one user's application to one program. Both owner
// references are required at creation and immutable afterwards; either
// owner's deletion cascades.
type Application struct {
	ID           string           `gorm:"column:id;primaryKey;size:190"`
	UserID       string           `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_applications_user_external"`
	User         users.User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ProgramID    string           `gorm:"column:program_id;size:190;not null;index"`
	Program      programs.Program `gorm:"foreignKey:ProgramID;constraint:OnDelete:CASCADE" json:"-"`
	ExternalID   string           `gorm:"column:application_id;size:50;not null;uniqueIndex:idx_applications_user_external"`
	Status       Status           `gorm:"column:status;size:32;not null;default:'draft';index"`
	Progress     int              `gorm:"column:progress;not null;default:0"`
	Notes        string           `gorm:"column:notes;type:text;not null;default:''"`
	Deadline     *time.Time       `gorm:"column:deadline;index"`
	SubmittedAt  *time.Time       `gorm:"column:submitted_at"`
	DecisionDate *time.Time       `gorm:"column:decision_date"`
	CreatedAt    time.Time        `gorm:"column:created_at;not null;index"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Application) TableName() string {
	return "applications"
}

// View selects the response shape of a single-application read.
type View int

const (
	// ViewBasic returns the application row alone.
	ViewBasic View = iota
	// ViewWithProgram eagerly loads the program relation.
	ViewWithProgram
)

// CreateInput carries the fields accepted when starting an application.
type CreateInput struct {
	UserID    string
	ProgramID string
	Notes     string
}

// Patch lists the mutable fields for partial updates. Owner references and
// the derived external id are not representable here.
type Patch struct {
	Status       *Status
	Progress     *int
	Notes        *string
	Deadline     *time.Time
	DecisionDate *time.Time
}

// ListFilter narrows List. All fields match by equality.
type ListFilter struct {
	UserID    string
	ProgramID string
	Status    Status
}

// BuildExternalID derives the external reference shown to applicants:
// the first three letters of the university, the year, and the per-user
// sequence number, e.g. EXA-2026-001. Sequences restart per user, so the
// reference is only unique within one user's applications.
func BuildExternalID(university string, year int, sequence int) string {
	letters := make([]rune, 0, 3)
	for _, r := range university {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
		}
		if len(letters) == 3 {
			break
		}
	}
	prefix := string(letters)
	if prefix == "" {
		prefix = "APP"
	}
	return fmt.Sprintf("%s-%d-%03d", strings.ToUpper(prefix), year, sequence)
}
