package visibility

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
)

// Service owns every mutation of Person base visibility, VisibilityPreference
// rows and per-reference overrides. Feature code must not write those tables
// directly; the precedence invariants only hold if all writers come through
// here.
type Service struct {
	db *gorm.DB
}

// NewService creates a visibility service over the given database handle.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ResolveReferences computes the effective visibility for every reference on
// a note. The note must be loaded with references, people and aliases
// preloaded. Unparsable stored values degrade to the safest reading rather
// than failing the render.
func (s *Service) ResolveReferences(note *models.Note) ([]ResolvedReference, error) {
	personIDs := make([]uint, 0, len(note.References))
	for _, ref := range note.References {
		if ref.IsPerson() && ref.PersonID != nil {
			personIDs = append(personIDs, *ref.PersonID)
		}
	}

	prefsByPerson := make(map[uint][]Preference)
	if len(personIDs) > 0 {
		var rows []models.VisibilityPreference
		if err := s.db.Where("person_id IN ?", personIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load preferences for note %d: %w", note.ID, err)
		}
		for _, row := range rows {
			level, err := ParseLevel(row.Visibility)
			if err != nil {
				log.Printf("Skipping preference row %d with invalid level %q", row.ID, row.Visibility)
				continue
			}
			prefsByPerson[row.PersonID] = append(prefsByPerson[row.PersonID], Preference{
				ContributorID: row.ContributorID,
				Level:         level,
			})
		}
	}

	authorID := note.AuthorID
	resolved := make([]ResolvedReference, 0, len(note.References))
	for _, ref := range note.References {
		if !ref.IsPerson() {
			resolved = append(resolved, ResolvedReference{
				Ref:        ref,
				Resolution: Resolution{Level: LevelApproved, Source: SourceDefault},
			})
			continue
		}
		in := ResolveInput{NoteAuthorID: &authorID}
		if ref.Visibility != nil {
			if level, err := ParseLevel(*ref.Visibility); err == nil {
				in.ReferenceOverride = &level
			} else {
				log.Printf("Ignoring invalid override %q on reference %d", *ref.Visibility, ref.ID)
			}
		}
		if ref.PersonID != nil {
			in.Preferences = prefsByPerson[*ref.PersonID]
		}
		if ref.Person != nil {
			if base, err := ParseLevel(ref.Person.Visibility); err == nil {
				in.Base = base
			}
		}
		resolved = append(resolved, ResolvedReference{Ref: ref, Resolution: Resolve(in)})
	}
	return resolved, nil
}

// SetGlobalPreference writes a person's global preference slot and refreshes
// the base visibility cache, without touching any reference override. Used by
// direct person management where no note is being viewed.
func (s *Service) SetGlobalPreference(personID uint, level Level) error {
	var person models.Person
	if err := s.db.First(&person, personID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: person %d", ErrNotFound, personID)
		}
		return fmt.Errorf("failed to load person %d: %w", personID, err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		prefs := repository.NewVisibilityPreferenceRepository(tx)
		pref := models.VisibilityPreference{PersonID: personID, Visibility: string(level)}
		if err := prefs.Upsert(&pref); err != nil {
			return err
		}
		return tx.Model(&models.Person{}).Where("id = ?", personID).
			Updates(map[string]interface{}{"visibility": string(level), "updated_at": time.Now().Unix()}).Error
	})
}

// Choice is one visibility decision made by a person (or their claimant)
// while viewing a specific reference on a specific note.
type Choice struct {
	PersonID    uint
	ReferenceID uint
	// AuthorID is the contributor who authored the note being viewed; the
	// by_author scope grants them, specifically, the chosen level.
	AuthorID uint
	Scope    Scope
	Level    Level
}

// ApplyChoice persists a visibility choice under the named scope. The multi-
// row scopes (by_author, all_notes) are atomic: either every row updates or
// none does. Writing a preference for a person that does not exist fails
// closed with ErrNotFound; nothing is created speculatively.
func (s *Service) ApplyChoice(choice Choice) error {
	if _, err := ParseLevel(string(choice.Level)); err != nil {
		return err
	}

	var person models.Person
	if err := s.db.First(&person, choice.PersonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: person %d", ErrNotFound, choice.PersonID)
		}
		return fmt.Errorf("failed to load person %d: %w", choice.PersonID, err)
	}

	level := string(choice.Level)
	return s.db.Transaction(func(tx *gorm.DB) error {
		prefs := repository.NewVisibilityPreferenceRepository(tx)
		switch choice.Scope {
		case ScopeByAuthor:
			authorID := choice.AuthorID
			pref := models.VisibilityPreference{PersonID: choice.PersonID, ContributorID: &authorID, Visibility: level}
			if err := prefs.Upsert(&pref); err != nil {
				return err
			}
		case ScopeAllNotes:
			pref := models.VisibilityPreference{PersonID: choice.PersonID, Visibility: level}
			if err := prefs.Upsert(&pref); err != nil {
				return err
			}
			// Base visibility is a cache of the global preference, refreshed
			// only by this write path.
			if err := tx.Model(&models.Person{}).Where("id = ?", choice.PersonID).
				Updates(map[string]interface{}{"visibility": level, "updated_at": time.Now().Unix()}).Error; err != nil {
				return fmt.Errorf("failed to refresh base visibility for person %d: %w", choice.PersonID, err)
			}
		}

		// Every scope rewrites the current reference's override so a stale
		// override cannot shadow the fresh preference on the note the person
		// is looking at right now.
		result := tx.Model(&models.EventReference{}).
			Where("id = ?", choice.ReferenceID).
			Update("visibility", level)
		if result.Error != nil {
			return fmt.Errorf("failed to set override on reference %d: %w", choice.ReferenceID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: reference %d", ErrNotFound, choice.ReferenceID)
		}
		return nil
	})
}
