package models

import "time"

// Note is a narrative memory submitted by a contributor about the archive's
// subject. Content is stored as the contributor wrote it; redaction happens
// at render time, never at rest.
type Note struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	Title     string      `json:"title" gorm:"not null"`
	Content   string      `json:"content" gorm:"type:text"`
	AuthorID  uint        `json:"author_id" gorm:"not null;index"`
	Author    Contributor `json:"-" gorm:"foreignKey:AuthorID"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	References []EventReference `gorm:"foreignKey:NoteID;constraint:OnDelete:CASCADE" json:"references,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Note) TableName() string {
	return "notes"
}
