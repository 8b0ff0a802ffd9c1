package models

// PersonAlias represents an alternative spelling or nickname for a person.
// It corresponds to the 'person_aliases' table.
type PersonAlias struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID uint   `gorm:"not null;uniqueIndex:idx_person_alias" json:"person_id"`
	Name     string `gorm:"not null;uniqueIndex:idx_person_alias" json:"name"`
}

// TableName explicitly sets the table name for GORM.
func (PersonAlias) TableName() string {
	return "person_aliases"
}
