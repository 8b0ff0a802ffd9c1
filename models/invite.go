package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invite statuses. Transitions are forward-only; a status never regresses.
const (
	InviteStatusPending     = "pending"
	InviteStatusSent        = "sent"
	InviteStatusOpened      = "opened"
	InviteStatusContributed = "contributed"
)

var inviteStatusRank = map[string]int{
	InviteStatusPending:     0,
	InviteStatusSent:        1,
	InviteStatusOpened:      2,
	InviteStatusContributed: 3,
}

// Invite is a propagation node in a referral tree. A root invite has a nil
// ParentInviteID and depth 0; children carry depth = parent.depth + 1 and
// inherit MaxUses from the root. The invites.Guard must be consulted before
// any Invite row is persisted.
type Invite struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Code string `json:"code" gorm:"uniqueIndex;not null"`

	NoteID           *uint  `json:"note_id,omitempty" gorm:"index"`
	RecipientName    string `json:"recipient_name" gorm:"not null"`
	RecipientContact string `json:"recipient_contact" gorm:"not null"` // phone number or email address
	Channel          string `json:"channel" gorm:"not null;default:email"`

	Status         string     `json:"status" gorm:"not null;default:pending"`
	ParentInviteID *uint      `json:"parent_invite_id,omitempty" gorm:"index"`
	Depth          int        `json:"depth" gorm:"not null;default:0"`
	MaxUses        int        `json:"max_uses" gorm:"not null"`
	Uses           int        `json:"uses" gorm:"default:0"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" gorm:"index"` // nullable for no expiration

	CreatedByID uint        `json:"created_by_id"`
	CreatedBy   Contributor `json:"-" gorm:"foreignKey:CreatedByID"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Invite) TableName() string {
	return "invites"
}

// BeforeCreate generates a unique code if not provided.
func (i *Invite) BeforeCreate(tx *gorm.DB) (err error) {
	if i.Code == "" {
		i.Code = uuid.New().String()
	}
	return
}

// IsValid checks if the invite can still be used.
func (i *Invite) IsValid() bool {
	if i.Status == InviteStatusContributed {
		return false
	}
	if i.ExpiresAt != nil && time.Now().After(*i.ExpiresAt) {
		return false
	}
	if i.MaxUses > 0 && i.Uses >= i.MaxUses {
		return false
	}
	return true
}

// CanTransitionTo reports whether moving to the given status preserves the
// forward-only lifecycle.
func (i *Invite) CanTransitionTo(status string) bool {
	next, ok := inviteStatusRank[status]
	if !ok {
		return false
	}
	return next > inviteStatusRank[i.Status]
}
