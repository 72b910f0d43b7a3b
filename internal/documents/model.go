package documents

import (
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
)

// Type enumerates document categories.
type Type string

const (
	// TypeTranscript is an academic transcript.
	TypeTranscript Type = "transcript"
	// TypeEssay is a personal statement or essay.
	TypeEssay Type = "essay"
	// TypeRecommendation is a recommendation letter.
	TypeRecommendation Type = "recommendation"
	// TypeCertificate is a language or test certificate.
	TypeCertificate Type = "certificate"
	// TypeOther covers everything else.
	TypeOther Type = "other"
)

// Status enumerates the verification lifecycle.
type Status string

const (
	// StatusPending is the initial state of every upload.
	StatusPending Status = "pending"
	// StatusVerifying marks a document under review.
	StatusVerifying Status = "verifying"
	// StatusVerified marks a successfully checked document.
	StatusVerified Status = "verified"
	// StatusRejected marks a failed check.
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether the value is a member of the enumeration.
func ValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusVerifying, StatusVerified, StatusRejected:
		return true
	default:
		return false
	}
}

// Document is an uploaded file record. The owner reference cascades; the
// optional application link is released when the application goes away.
type Document struct {
	ID            string                    `gorm:"column:id;primaryKey;size:190"`
	UserID        string                    `gorm:"column:user_id;size:190;not null;index"`
	User          users.User                `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ApplicationID *string                   `gorm:"column:application_id;size:190;index"`
	Application   applications.Application  `gorm:"foreignKey:ApplicationID;constraint:OnDelete:SET NULL" json:"-"`
	Type          Type                      `gorm:"column:document_type;size:32;not null"`
	Name          string                    `gorm:"column:name;size:255;not null"`
	Filename      string                    `gorm:"column:filename;size:255;not null;default:''"`
	FileSize      int64                     `gorm:"column:file_size;not null;default:0"`
	MimeType      string                    `gorm:"column:mime_type;size:100;not null;default:''"`
	Status        Status                    `gorm:"column:status;size:32;not null;default:'pending';index"`
	VerifiedAt    *time.Time                `gorm:"column:verified_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;not null;index"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// CreateInput carries the fields accepted when recording an upload.
type CreateInput struct {
	UserID        string
	ApplicationID string
	Type          Type
	Name          string
	Filename      string
	FileSize      int64
	MimeType      string
}

// Patch lists the mutable fields for partial updates. Owner and
// application references are fixed at upload time.
type Patch struct {
	Name   *string
	Status *Status
}

// ListFilter narrows List. All fields match by equality.
type ListFilter struct {
	UserID        string
	ApplicationID string
	Type          Type
	Status        Status
}
