package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/Novakiki/kindredbackend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VisibilityPreferenceRepository handles database operations for
// VisibilityPreference rows. All writes go through Upsert so the
// one-row-per-(person, contributor) invariant holds under concurrent
// retries; the last writer wins.
type VisibilityPreferenceRepository struct {
	DB *gorm.DB
}

// NewVisibilityPreferenceRepository creates a new instance of VisibilityPreferenceRepository
func NewVisibilityPreferenceRepository(db *gorm.DB) *VisibilityPreferenceRepository {
	return &VisibilityPreferenceRepository{DB: db}
}

// Upsert inserts or updates the preference row for the pref's
// (person_id, contributor_id) key. SQLite's unique index treats NULLs as
// distinct, so the global slot (contributor_id NULL) is upserted inside a
// transaction rather than relying on ON CONFLICT.
func (r *VisibilityPreferenceRepository) Upsert(pref *models.VisibilityPreference) error {
	pref.UpdatedAt = time.Now()

	if pref.ContributorID != nil {
		err := r.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "person_id"}, {Name: "contributor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"visibility", "updated_at"}),
		}).Create(pref).Error
		if err != nil {
			return fmt.Errorf("failed to upsert preference for person %d contributor %d: %w",
				pref.PersonID, *pref.ContributorID, err)
		}
		return nil
	}

	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.VisibilityPreference
		err := tx.Where("person_id = ? AND contributor_id IS NULL", pref.PersonID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(pref).Error; err != nil {
				return fmt.Errorf("failed to create global preference for person %d: %w", pref.PersonID, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up global preference for person %d: %w", pref.PersonID, err)
		}
		result := tx.Model(&models.VisibilityPreference{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"visibility": pref.Visibility, "updated_at": pref.UpdatedAt})
		if result.Error != nil {
			return fmt.Errorf("failed to update global preference for person %d: %w", pref.PersonID, result.Error)
		}
		pref.ID = existing.ID
		return nil
	})
}

// ListByPersonID retrieves all preference rows for a person
func (r *VisibilityPreferenceRepository) ListByPersonID(personID uint) ([]models.VisibilityPreference, error) {
	var prefs []models.VisibilityPreference
	err := r.DB.Where("person_id = ?", personID).Find(&prefs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences for person %d: %w", personID, err)
	}
	return prefs, nil
}

// GetGlobal retrieves the person's global default preference row, if any
func (r *VisibilityPreferenceRepository) GetGlobal(personID uint) (*models.VisibilityPreference, error) {
	var pref models.VisibilityPreference
	err := r.DB.Where("person_id = ? AND contributor_id IS NULL", personID).First(&pref).Error
	if err != nil {
		return nil, err
	}
	return &pref, nil
}
