package posts

import (
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
)

// Post is a blog entry. The author reference is required at creation and
// immutable afterwards; deleting the author deletes the post.
type Post struct {
	ID        string     `gorm:"column:id;primaryKey;size:190"`
	AuthorID  string     `gorm:"column:author_id;size:190;not null;index"`
	Author    users.User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Title     string     `gorm:"column:title;size:255;not null"`
	Content   string     `gorm:"column:content;type:text;not null"`
	Published bool       `gorm:"column:published;not null;default:false;index"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;index"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// View selects the response shape of a single-post read.
type View int

const (
	// ViewBasic returns the post row alone.
	ViewBasic View = iota
	// ViewWithAuthor eagerly loads the author relation.
	ViewWithAuthor
)

// CreateInput carries the fields accepted when creating a post.
type CreateInput struct {
	AuthorID  string
	Title     string
	Content   string
	Published bool
}

// Patch lists the mutable fields for partial updates. The author reference
// is not representable here, so it cannot be patched.
type Patch struct {
	Title     *string
	Content   *string
	Published *bool
}

// ListFilter narrows List. AuthorID and Published match by equality,
// Search spans title and content.
type ListFilter struct {
	AuthorID  string
	Published *bool
	Search    string
}
