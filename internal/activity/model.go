package activity

import (
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
)

// Type enumerates timeline event categories.
type Type string

const (
	// TypeApplicationCreated marks a new application draft.
	TypeApplicationCreated Type = "application_created"
	// TypeApplicationSubmitted marks the draft-to-submitted transition.
	TypeApplicationSubmitted Type = "application_submitted"
	// TypeApplicationStatusChanged marks any other status update.
	TypeApplicationStatusChanged Type = "application_status_changed"
	// TypeApplicationDeleted marks an application removal.
	TypeApplicationDeleted Type = "application_deleted"
	// TypeDocumentUploaded marks a new document.
	TypeDocumentUploaded Type = "document_uploaded"
	// TypeDocumentVerified marks a document reaching verified status.
	TypeDocumentVerified Type = "document_verified"
	// TypeDocumentDeleted marks a document removal.
	TypeDocumentDeleted Type = "document_deleted"
	// TypeProfileUpdated marks account profile changes.
	TypeProfileUpdated Type = "profile_updated"
)

// Activity is one immutable timeline row. Related entity references are
// nullable and cleared when the referenced row is deleted; the owning user
// reference cascades.
type Activity struct {
	ID                   string     `gorm:"column:id;primaryKey;size:190"`
	UserID               string     `gorm:"column:user_id;size:190;not null;index:idx_activities_user_time,priority:1"`
	User                 users.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Type                 Type       `gorm:"column:activity_type;size:64;not null"`
	Title                string     `gorm:"column:title;size:255;not null"`
	Description          string     `gorm:"column:description;type:text;not null;default:''"`
	RelatedApplicationID *string    `gorm:"column:related_application_id;size:190"`
	RelatedDocumentID    *string    `gorm:"column:related_document_id;size:190"`
	RelatedProgramID     *string    `gorm:"column:related_program_id;size:190"`
	CreatedAt            time.Time  `gorm:"column:created_at;not null;index:idx_activities_user_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Activity) TableName() string {
	return "activities"
}

// Entry describes one event to append.
type Entry struct {
	UserID        string
	Type          Type
	Title         string
	Description   string
	ApplicationID string
	DocumentID    string
	ProgramID     string
}
