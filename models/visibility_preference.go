package models

import "time"

// VisibilityPreference maps (person_id, contributor_id) to a disclosure
// level. ContributorID NULL encodes the global default the person set for
// themself; a non-null ContributorID means "this person trusts this specific
// author with this disclosure level". At most one row may exist per
// (person_id, contributor_id) pair; writers must use upsert-on-conflict
// semantics, never insert-then-dedupe.
type VisibilityPreference struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	PersonID      uint      `json:"person_id" gorm:"not null;uniqueIndex:idx_person_contributor"`
	ContributorID *uint     `json:"contributor_id,omitempty" gorm:"uniqueIndex:idx_person_contributor"`
	Visibility    string    `json:"visibility" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (VisibilityPreference) TableName() string {
	return "visibility_preferences"
}

// IsGlobal reports whether the preference is the person's global default
// rather than an author-scoped grant.
func (vp *VisibilityPreference) IsGlobal() bool {
	return vp.ContributorID == nil
}
