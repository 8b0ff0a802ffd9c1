package repository

import (
	"errors"
	"fmt"

	"github.com/Novakiki/kindredbackend/models"
	"gorm.io/gorm"
)

// ReferenceRepository handles database operations for EventReference entities
type ReferenceRepository struct {
	DB *gorm.DB
}

// NewReferenceRepository creates a new instance of ReferenceRepository
func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{DB: db}
}

// Create creates a new event reference record in the database
func (r *ReferenceRepository) Create(ref *models.EventReference) error {
	err := r.DB.Create(ref).Error
	if err != nil {
		return fmt.Errorf("failed to create reference on note %d: %w", ref.NoteID, err)
	}
	return nil
}

// GetByID retrieves a reference by its ID with person, aliases and the
// contributor who added it preloaded
func (r *ReferenceRepository) GetByID(id uint) (*models.EventReference, error) {
	var ref models.EventReference
	err := r.DB.
		Preload("Person").
		Preload("Person.Aliases").
		Preload("AddedBy").
		First(&ref, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get reference by ID %d: %w", id, err)
	}
	return &ref, nil
}

// ListByNoteID retrieves all references on a note in insertion order. The
// order is load-bearing: the name matcher breaks ties by it.
func (r *ReferenceRepository) ListByNoteID(noteID uint) ([]models.EventReference, error) {
	var refs []models.EventReference
	err := r.DB.
		Preload("Person").
		Preload("Person.Aliases").
		Preload("AddedBy").
		Where("note_id = ?", noteID).
		Order("id ASC").
		Find(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list references for note %d: %w", noteID, err)
	}
	return refs, nil
}

// UpdateOverride sets or clears the per-reference visibility override.
// A nil visibility clears the override back to "use resolved default".
func (r *ReferenceRepository) UpdateOverride(referenceID uint, visibility *string) error {
	result := r.DB.Model(&models.EventReference{}).
		Where("id = ?", referenceID).
		Update("visibility", visibility)
	if result.Error != nil {
		return fmt.Errorf("failed to update override on reference %d: %w", referenceID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a reference by its ID
func (r *ReferenceRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.EventReference{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete reference ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
