package repository

import (
	"github.com/Novakiki/kindredbackend/models"
)

// PersonRepositoryInterface defines the methods for person data operations
type PersonRepositoryInterface interface {
	Create(person *models.Person) error
	GetByID(id uint) (*models.Person, error)
	ListAll() ([]models.Person, error)
	Update(person *models.Person) error
	Delete(id uint) error
	AddAlias(alias *models.PersonAlias) error
	DeleteAlias(aliasID uint) error
	FindPersonIDsByNameOrAlias(query string) ([]uint, error)
}

// NoteRepositoryInterface defines the methods for note data operations
type NoteRepositoryInterface interface {
	Create(note *models.Note) error
	GetByID(id uint) (*models.Note, error)
	ListAll() ([]models.Note, error)
	Delete(id uint) error
}

// ReferenceRepositoryInterface defines the methods for event reference data
// operations. ListByNoteID must return rows in original insertion order;
// the name matcher's tie-breaking depends on it.
type ReferenceRepositoryInterface interface {
	Create(ref *models.EventReference) error
	GetByID(id uint) (*models.EventReference, error)
	ListByNoteID(noteID uint) ([]models.EventReference, error)
	UpdateOverride(referenceID uint, visibility *string) error
	Delete(id uint) error
}

// VisibilityPreferenceRepositoryInterface defines the methods for visibility
// preference rows. Upsert must be keyed on (person_id, contributor_id) with
// NULL contributor_id treated as a single global slot, making writes
// idempotent and safely retryable.
type VisibilityPreferenceRepositoryInterface interface {
	Upsert(pref *models.VisibilityPreference) error
	ListByPersonID(personID uint) ([]models.VisibilityPreference, error)
	GetGlobal(personID uint) (*models.VisibilityPreference, error)
}

// ContributorRepositoryInterface defines the methods for contributor data operations
type ContributorRepositoryInterface interface {
	Create(contributor *models.Contributor) error
	GetByID(id uint) (*models.Contributor, error)
	GetByEmail(email string) (*models.Contributor, error)
	ListAll() ([]models.Contributor, error)
}

// InviteRepositoryInterface defines the methods for invite data operations
type InviteRepositoryInterface interface {
	Create(invite *models.Invite) error
	GetByID(id uint) (*models.Invite, error)
	GetByCode(code string) (*models.Invite, error)
	ListChildren(parentInviteID uint) ([]models.Invite, error)
	ListAll() ([]models.Invite, error)
	UpdateStatus(id uint, status string) error
	CreateChild(invite *models.Invite, parentID uint, maxUses int) error
}

// ClaimTokenRepositoryInterface defines the methods for claim token data operations
type ClaimTokenRepositoryInterface interface {
	Create(token *models.ClaimToken) error
	GetByToken(token string) (*models.ClaimToken, error)
	MarkUsed(id uint) error
}
