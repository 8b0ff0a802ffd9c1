package models

import "time"

// EventReference types and person roles.
const (
	ReferenceTypePerson = "person"
	ReferenceTypeLink   = "link"

	RoleWitness   = "witness"
	RoleHeardFrom = "heard_from"
	RoleSource    = "source"
	RoleRelated   = "related"
)

// EventReference is a mention link between exactly one note and either a
// person or an external link/document. For person references, Visibility is
// a per-reference override: nil means "use the resolved default", and it
// never changes the Person record itself.
type EventReference struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	NoteID   uint    `json:"note_id" gorm:"not null;index"`
	Type     string  `json:"type" gorm:"not null;default:person"`
	PersonID *uint   `json:"person_id,omitempty" gorm:"index"`
	Person   *Person `json:"person,omitempty" gorm:"foreignKey:PersonID"`

	// DisplayName is the free-text name the contributor typed before (or
	// instead of) the mention being linked to a Person row.
	DisplayName *string `json:"display_name,omitempty"`

	// URL is set for link-type references only.
	URL *string `json:"url,omitempty"`

	Role                  string  `json:"role" gorm:"not null;default:related"`
	Visibility            *string `json:"visibility,omitempty"` // per-reference override, nullable
	RelationshipToSubject *string `json:"relationship_to_subject,omitempty"`

	AddedByID uint        `json:"added_by_id" gorm:"not null"`
	AddedBy   Contributor `json:"-" gorm:"foreignKey:AddedByID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (EventReference) TableName() string {
	return "event_references"
}

// IsPerson reports whether the reference mentions a person (as opposed to an
// external link or document).
func (r *EventReference) IsPerson() bool {
	return r.Type == ReferenceTypePerson
}
