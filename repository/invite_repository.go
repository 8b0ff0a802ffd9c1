package repository

import (
	"errors"
	"fmt"

	"github.com/Novakiki/kindredbackend/models"
	"gorm.io/gorm"
)

// ErrParentInviteSpent indicates a parent invite had no uses left at write
// time, even if a caller's earlier read said otherwise.
var ErrParentInviteSpent = errors.New("repository: parent invite has no uses left")

type GormInviteRepository struct {
	db *gorm.DB
}

func NewGormInviteRepository(db *gorm.DB) InviteRepositoryInterface {
	return &GormInviteRepository{db: db}
}

func (r *GormInviteRepository) Create(invite *models.Invite) error {
	return r.db.Create(invite).Error
}

func (r *GormInviteRepository) GetByID(id uint) (*models.Invite, error) {
	var invite models.Invite
	err := r.db.First(&invite, id).Error
	return &invite, err
}

func (r *GormInviteRepository) GetByCode(code string) (*models.Invite, error) {
	var invite models.Invite
	err := r.db.Where("code = ?", code).First(&invite).Error
	return &invite, err
}

func (r *GormInviteRepository) ListChildren(parentInviteID uint) ([]models.Invite, error) {
	var invites []models.Invite
	err := r.db.Where("parent_invite_id = ?", parentInviteID).Order("id ASC").Find(&invites).Error
	return invites, err
}

func (r *GormInviteRepository) ListAll() ([]models.Invite, error) {
	var invites []models.Invite
	err := r.db.Order("id ASC").Find(&invites).Error
	return invites, err
}

// UpdateStatus advances an invite's lifecycle. The forward-only rule is
// enforced here so no caller can regress a status.
func (r *GormInviteRepository) UpdateStatus(id uint, status string) error {
	invite, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if !invite.CanTransitionTo(status) {
		return fmt.Errorf("invite %d cannot move from %s to %s", id, invite.Status, status)
	}
	return r.db.Model(&models.Invite{}).Where("id = ?", id).Update("status", status).Error
}

// CreateChild persists a child invite and spends one of the parent's uses in
// the same transaction. The use is claimed with a guarded update so two
// concurrent children of a nearly spent parent cannot both get through; if
// the parent has no uses left the child is not created.
func (r *GormInviteRepository) CreateChild(invite *models.Invite, parentID uint, maxUses int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		claimed := tx.Model(&models.Invite{}).
			Where("id = ? AND uses < ?", parentID, maxUses).
			UpdateColumn("uses", gorm.Expr("uses + 1"))
		if claimed.Error != nil {
			return fmt.Errorf("failed to claim use on parent invite %d: %w", parentID, claimed.Error)
		}
		if claimed.RowsAffected == 0 {
			return ErrParentInviteSpent
		}
		return tx.Create(invite).Error
	})
}
