package invites

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
)

const defaultInviteTTL = 30 * 24 * time.Hour

// Service creates and advances invites. Every creation passes through the
// propagation guard first; a rejected chain persists nothing.
type Service struct {
	limits  Limits
	invites repository.InviteRepositoryInterface
}

// NewService creates an invite service with the configured chain limits.
func NewService(limits Limits, invites repository.InviteRepositoryInterface) *Service {
	return &Service{limits: limits, invites: invites}
}

// CreateInput describes a new invite request.
type CreateInput struct {
	NoteID           *uint
	RecipientName    string
	RecipientContact string
	Channel          string
	ParentInviteID   *uint
	CreatedByID      uint
}

// Create validates the chain position and persists the invite. For a child
// invite the parent's use is spent in the same transaction that creates the
// row, so a rejected chain persists nothing.
func (s *Service) Create(input CreateInput) (*models.Invite, error) {
	var parent *models.Invite
	if input.ParentInviteID != nil {
		found, err := s.invites.GetByID(*input.ParentInviteID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("parent invite %d not found: %w", *input.ParentInviteID, err)
			}
			return nil, fmt.Errorf("failed to load parent invite %d: %w", *input.ParentInviteID, err)
		}
		if !found.IsValid() {
			return nil, fmt.Errorf("%w: invite %d is expired or spent", ErrPropagationLimitExceeded, found.ID)
		}
		parent = found
	}

	chain, err := s.limits.Child(parent)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(defaultInviteTTL)
	invite := &models.Invite{
		NoteID:           input.NoteID,
		RecipientName:    input.RecipientName,
		RecipientContact: input.RecipientContact,
		Channel:          input.Channel,
		Status:           models.InviteStatusPending,
		ParentInviteID:   chain.ParentInviteID,
		Depth:            chain.Depth,
		MaxUses:          chain.MaxUses,
		ExpiresAt:        &expiresAt,
		CreatedByID:      input.CreatedByID,
	}
	if parent == nil {
		if err := s.invites.Create(invite); err != nil {
			return nil, fmt.Errorf("failed to create invite for %s: %w", input.RecipientName, err)
		}
		return invite, nil
	}

	// The guard's read of the parent may be stale under concurrent creation,
	// so the use is claimed again transactionally at write time.
	if err := s.invites.CreateChild(invite, parent.ID, chain.MaxUses); err != nil {
		if errors.Is(err, repository.ErrParentInviteSpent) {
			return nil, fmt.Errorf("%w: invite %d already spent its %d uses",
				ErrPropagationLimitExceeded, parent.ID, chain.MaxUses)
		}
		return nil, fmt.Errorf("failed to create invite for %s: %w", input.RecipientName, err)
	}
	return invite, nil
}

// MarkOpened records that a recipient followed their invite link.
func (s *Service) MarkOpened(code string) (*models.Invite, error) {
	invite, err := s.invites.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if !invite.IsValid() {
		return nil, fmt.Errorf("invite %s is expired or spent", code)
	}
	if invite.CanTransitionTo(models.InviteStatusOpened) {
		if err := s.invites.UpdateStatus(invite.ID, models.InviteStatusOpened); err != nil {
			return nil, err
		}
		invite.Status = models.InviteStatusOpened
	}
	return invite, nil
}

// MarkContributed records the terminal state of an invite whose recipient
// went on to contribute.
func (s *Service) MarkContributed(inviteID uint) error {
	return s.invites.UpdateStatus(inviteID, models.InviteStatusContributed)
}

// Chain returns the direct children of an invite, oldest first.
func (s *Service) Chain(inviteID uint) ([]models.Invite, error) {
	return s.invites.ListChildren(inviteID)
}
