package programs

import "time"

// Program is a university program catalog row. It has no owner; other
// entities reference it.
type Program struct {
	ID             string     `gorm:"column:id;primaryKey;size:190"`
	UniversityName string     `gorm:"column:university_name;size:255;not null;index"`
	ProgramName    string     `gorm:"column:program_name;size:255;not null;index"`
	DegreeType     string     `gorm:"column:degree_type;size:50;not null"`
	Country        string     `gorm:"column:country;size:100;not null;index"`
	City           string     `gorm:"column:city;size:100;not null;default:''"`
	Description    string     `gorm:"column:description;type:text;not null;default:''"`
	ApplicationFee string     `gorm:"column:application_fee;size:20;not null;default:''"`
	TuitionPerYear string     `gorm:"column:tuition_per_year;size:50;not null;default:''"`
	DurationMonths int        `gorm:"column:duration_months;not null;default:0"`
	Deadline       *time.Time `gorm:"column:deadline;index"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null;index"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Program) TableName() string {
	return "programs"
}

// CreateInput carries the fields accepted when adding a catalog entry.
type CreateInput struct {
	UniversityName string
	ProgramName    string
	DegreeType     string
	Country        string
	City           string
	Description    string
	ApplicationFee string
	TuitionPerYear string
	DurationMonths int
	Deadline       *time.Time
}

// Patch lists the mutable fields for partial updates.
type Patch struct {
	UniversityName *string
	ProgramName    *string
	DegreeType     *string
	Country        *string
	City           *string
	Description    *string
	ApplicationFee *string
	TuitionPerYear *string
	DurationMonths *int
	Deadline       *time.Time
}

// Sort selects the list ordering.
type Sort int

const (
	// SortNewestFirst orders by creation time descending.
	SortNewestFirst Sort = iota
	// SortDeadlineAscending orders by application deadline, soonest first.
	SortDeadlineAscending
)

// ListFilter narrows List. Search spans university, program name and
// description; Country matches by substring, DegreeType by equality.
type ListFilter struct {
	Search     string
	Country    string
	DegreeType string
	Sort       Sort
}
