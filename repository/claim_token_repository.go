package repository

import (
	"time"

	"github.com/Novakiki/kindredbackend/models"
	"gorm.io/gorm"
)

type GormClaimTokenRepository struct {
	db *gorm.DB
}

func NewGormClaimTokenRepository(db *gorm.DB) ClaimTokenRepositoryInterface {
	return &GormClaimTokenRepository{db: db}
}

func (r *GormClaimTokenRepository) Create(token *models.ClaimToken) error {
	return r.db.Create(token).Error
}

func (r *GormClaimTokenRepository) GetByToken(token string) (*models.ClaimToken, error) {
	var claim models.ClaimToken
	err := r.db.Where("token = ?", token).First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *GormClaimTokenRepository) MarkUsed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.ClaimToken{}).Where("id = ?", id).Update("used_at", &now).Error
}
