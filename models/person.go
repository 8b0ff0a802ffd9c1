package models

// VisibilityLevel values persisted on people, references and preferences.
// The authoritative enum and resolution rules live in the visibility package;
// models only store the raw strings.
const (
	VisibilityApproved   = "approved"
	VisibilityPending    = "pending"
	VisibilityAnonymized = "anonymized"
	VisibilityBlurred    = "blurred"
	VisibilityRemoved    = "removed"
)

// Person represents a real individual mentioned in notes, independent of any
// contributor account. It corresponds to the 'people' table.
type Person struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	CanonicalName string `gorm:"not null" json:"canonical_name"`
	// Visibility is the base fallback disclosure level. It is a cache kept in
	// sync by the all_notes write path only; the global VisibilityPreference
	// row (contributor_id NULL) is canonical.
	Visibility  string `gorm:"not null;default:pending" json:"visibility"`
	CreatedByID uint   `gorm:"not null" json:"created_by_id"` // contributor who first recorded them
	CreatedAt   int64  `gorm:"not null" json:"created_at"`    // Unix timestamp
	UpdatedAt   int64  `gorm:"not null" json:"updated_at"`    // Unix timestamp

	// Relationships
	Aliases []PersonAlias `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE" json:"aliases,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "people"
}

// AliasNames returns the alias strings in stored order. Aliases are used only
// for matching and masking, never for display.
func (p *Person) AliasNames() []string {
	names := make([]string, 0, len(p.Aliases))
	for _, alias := range p.Aliases {
		names = append(names, alias.Name)
	}
	return names
}
