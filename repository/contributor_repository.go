package repository

import (
	"github.com/Novakiki/kindredbackend/models"
	"gorm.io/gorm"
)

type GormContributorRepository struct {
	db *gorm.DB
}

func NewGormContributorRepository(db *gorm.DB) ContributorRepositoryInterface {
	return &GormContributorRepository{db: db}
}

func (r *GormContributorRepository) Create(contributor *models.Contributor) error {
	return r.db.Create(contributor).Error
}

func (r *GormContributorRepository) GetByID(id uint) (*models.Contributor, error) {
	var contributor models.Contributor
	err := r.db.First(&contributor, id).Error
	if err != nil {
		return nil, err
	}
	return &contributor, nil
}

func (r *GormContributorRepository) GetByEmail(email string) (*models.Contributor, error) {
	var contributor models.Contributor
	err := r.db.Where("email = ?", email).First(&contributor).Error
	if err != nil {
		return nil, err
	}
	return &contributor, nil
}

func (r *GormContributorRepository) ListAll() ([]models.Contributor, error) {
	var contributors []models.Contributor
	err := r.db.Find(&contributors).Error
	return contributors, err
}
