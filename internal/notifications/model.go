package notifications

import (
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
)

// Type enumerates notification categories.
type Type string

const (
	// TypeDeadline warns about an approaching application deadline.
	TypeDeadline Type = "deadline"
	// TypeAIMatch announces a recommended program.
	TypeAIMatch Type = "ai_match"
	// TypeDocument reports a document verification outcome.
	TypeDocument Type = "document"
	// TypeOffer announces an admission decision.
	TypeOffer Type = "offer"
	// TypeStatusUpdate reports an application status change.
	TypeStatusUpdate Type = "status_update"
	// TypeReminder is a user-facing reminder.
	TypeReminder Type = "reminder"
	// TypeSystem covers platform announcements.
	TypeSystem Type = "system"
)

// ValidType reports whether the value is a member of the enumeration.
func ValidType(t Type) bool {
	switch t {
	case TypeDeadline, TypeAIMatch, TypeDocument, TypeOffer, TypeStatusUpdate, TypeReminder, TypeSystem:
		return true
	default:
		return false
	}
}

// Notification is one inbox entry. The owner reference cascades; the
// optional application and program links are released when their targets
// go away.
type Notification struct {
	ID                   string                   `gorm:"column:id;primaryKey;size:190"`
	UserID               string                   `gorm:"column:user_id;size:190;not null;index"`
	User                 users.User               `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Type                 Type                     `gorm:"column:notification_type;size:32;not null"`
	Title                string                   `gorm:"column:title;size:255;not null"`
	Message              string                   `gorm:"column:message;type:text;not null;default:''"`
	IsRead               bool                     `gorm:"column:is_read;not null;default:false;index"`
	ReadAt               *time.Time               `gorm:"column:read_at"`
	RelatedApplicationID *string                  `gorm:"column:related_application_id;size:190"`
	RelatedApplication   applications.Application `gorm:"foreignKey:RelatedApplicationID;constraint:OnDelete:SET NULL" json:"-"`
	RelatedProgramID     *string                  `gorm:"column:related_program_id;size:190"`
	RelatedProgram       programs.Program         `gorm:"foreignKey:RelatedProgramID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt            time.Time                `gorm:"column:created_at;not null;index"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// CreateInput carries the fields accepted when publishing a notification.
type CreateInput struct {
	UserID               string
	Type                 Type
	Title                string
	Message              string
	RelatedApplicationID string
	RelatedProgramID     string
}

// ListFilter narrows List. UnreadOnly restricts to unread rows; Type
// matches by equality.
type ListFilter struct {
	UserID     string
	Type       Type
	UnreadOnly bool
}
