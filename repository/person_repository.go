package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/Novakiki/kindredbackend/models"
	"gorm.io/gorm"
)

// PersonRepository handles database operations for Person and PersonAlias entities
type PersonRepository struct {
	DB *gorm.DB
}

// NewPersonRepository creates a new instance of PersonRepository
func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: db}
}

// Create creates a new person record in the database
func (r *PersonRepository) Create(person *models.Person) error {
	now := time.Now().Unix()
	if person.CreatedAt == 0 {
		person.CreatedAt = now
	}
	if person.UpdatedAt == 0 {
		person.UpdatedAt = now
	}
	if person.Visibility == "" {
		person.Visibility = models.VisibilityPending
	}

	err := r.DB.Create(person).Error
	if err != nil {
		return fmt.Errorf("failed to create person %s: %w", person.CanonicalName, err)
	}
	return nil
}

// GetByID retrieves a person by their ID, preloading Aliases
func (r *PersonRepository) GetByID(id uint) (*models.Person, error) {
	var person models.Person
	err := r.DB.Preload("Aliases").First(&person, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get person by ID %d: %w", id, err)
	}
	return &person, nil
}

// ListAll retrieves all people, ordered by canonical_name, preloading Aliases
func (r *PersonRepository) ListAll() ([]models.Person, error) {
	var people []models.Person
	err := r.DB.Preload("Aliases").Order("canonical_name ASC").Find(&people).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	return people, nil
}

// Update updates an existing person's name and base visibility
func (r *PersonRepository) Update(person *models.Person) error {
	person.UpdatedAt = time.Now().Unix()
	result := r.DB.Model(&models.Person{ID: person.ID}).Updates(models.Person{
		CanonicalName: person.CanonicalName,
		Visibility:    person.Visibility,
		UpdatedAt:     person.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update person ID %d: %w", person.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a person by their ID
func (r *PersonRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.Person{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete person ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddAlias adds a new alias for a person
func (r *PersonRepository) AddAlias(alias *models.PersonAlias) error {
	err := r.DB.Create(alias).Error
	if err != nil {
		return fmt.Errorf("failed to add alias '%s' for person ID %d: %w", alias.Name, alias.PersonID, err)
	}
	return nil
}

// DeleteAlias removes an alias by its ID.
func (r *PersonRepository) DeleteAlias(aliasID uint) error {
	result := r.DB.Delete(&models.PersonAlias{}, aliasID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alias ID %d: %w", aliasID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindPersonIDsByNameOrAlias searches for people by canonical name or alias name.
// Returns a slice of unique person IDs
func (r *PersonRepository) FindPersonIDsByNameOrAlias(query string) ([]uint, error) {
	var ids []uint
	likeQuery := "%" + query + "%"

	err := r.DB.Model(&models.Person{}).Where("canonical_name LIKE ?", likeQuery).Pluck("id", &ids).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error searching people by canonical name for '%s': %w", query, err)
	}

	var aliasPersonIDs []uint
	err = r.DB.Model(&models.PersonAlias{}).Where("name LIKE ?", likeQuery).Pluck("person_id", &aliasPersonIDs).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error searching aliases by name for '%s': %w", query, err)
	}

	idMap := make(map[uint]bool)
	for _, id := range ids {
		idMap[id] = true
	}
	for _, id := range aliasPersonIDs {
		idMap[id] = true
	}

	uniqueIDs := make([]uint, 0, len(idMap))
	for id := range idMap {
		uniqueIDs = append(uniqueIDs, id)
	}

	return uniqueIDs, nil
}
