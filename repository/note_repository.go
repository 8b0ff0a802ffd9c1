package repository

import (
	"errors"
	"fmt"

	"github.com/Novakiki/kindredbackend/models"
	"gorm.io/gorm"
)

// NoteRepository handles database operations for Note entities
type NoteRepository struct {
	DB *gorm.DB
}

// NewNoteRepository creates a new instance of NoteRepository
func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{DB: db}
}

// Create creates a new note record in the database
func (r *NoteRepository) Create(note *models.Note) error {
	err := r.DB.Create(note).Error
	if err != nil {
		return fmt.Errorf("failed to create note '%s': %w", note.Title, err)
	}
	return nil
}

// GetByID retrieves a note by its ID with references, linked people and their
// aliases preloaded, in the shape the visibility engine consumes.
func (r *NoteRepository) GetByID(id uint) (*models.Note, error) {
	var note models.Note
	err := r.DB.
		Preload("References", func(db *gorm.DB) *gorm.DB {
			return db.Order("event_references.id ASC")
		}).
		Preload("References.Person").
		Preload("References.Person.Aliases").
		Preload("References.AddedBy").
		First(&note, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get note by ID %d: %w", id, err)
	}
	return &note, nil
}

// ListAll retrieves all notes, newest first, without references
func (r *NoteRepository) ListAll() ([]models.Note, error) {
	var notes []models.Note
	err := r.DB.Order("created_at DESC").Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// Delete removes a note by its ID
func (r *NoteRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.Note{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete note ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
