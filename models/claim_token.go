package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClaimToken is an out-of-band link token sent by SMS or email to a person
// mentioned in a note. It scopes the claim to one note and optionally pins
// the person it refers to; when PersonID is nil the recipient name must be
// resolved through the matching ladder.
type ClaimToken struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	Token         string     `json:"token" gorm:"uniqueIndex;not null"`
	NoteID        uint       `json:"note_id" gorm:"not null;index"`
	PersonID      *uint      `json:"person_id,omitempty" gorm:"index"`
	RecipientName string     `json:"recipient_name" gorm:"not null"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" gorm:"index"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (ClaimToken) TableName() string {
	return "claim_tokens"
}

// BeforeCreate generates a unique token if not provided.
func (ct *ClaimToken) BeforeCreate(tx *gorm.DB) (err error) {
	if ct.Token == "" {
		ct.Token = uuid.New().String()
	}
	return
}

// IsValid checks if the token can still be redeemed.
func (ct *ClaimToken) IsValid() bool {
	if ct.UsedAt != nil {
		return false
	}
	if ct.ExpiresAt != nil && time.Now().After(*ct.ExpiresAt) {
		return false
	}
	return true
}
