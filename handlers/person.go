package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
	"github.com/Novakiki/kindredbackend/visibility"
)

type PersonHandler struct {
	PersonRepo    repository.PersonRepositoryInterface
	VisibilitySvc *visibility.Service
}

func (ph *PersonHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CanonicalName string   `json:"canonical_name"`
		Aliases       []string `json:"aliases"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.CanonicalName) == "" {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Missing required field: canonical_name")
		return
	}

	contributor := contributorFromContext(r)
	if contributor == nil {
		WriteAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	person := &models.Person{
		CanonicalName: strings.TrimSpace(req.CanonicalName),
		Visibility:    models.VisibilityPending,
		CreatedByID:   contributor.ID,
	}
	if err := ph.PersonRepo.Create(person); err != nil {
		log.Printf("Error creating person '%s': %v", req.CanonicalName, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to create person")
		return
	}

	for _, aliasName := range req.Aliases {
		if strings.TrimSpace(aliasName) == "" {
			continue
		}
		alias := &models.PersonAlias{PersonID: person.ID, Name: strings.TrimSpace(aliasName)}
		if err := ph.PersonRepo.AddAlias(alias); err != nil {
			log.Printf("Error adding initial alias '%s' for person %d: %v", aliasName, person.ID, err)
		}
	}

	created, err := ph.PersonRepo.GetByID(person.ID)
	if err != nil {
		log.Printf("Error fetching newly created person %d: %v", person.ID, err)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Person created successfully", "id": person.ID})
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListPeople lists every person record, optionally filtered by a ?q= search
// over canonical names and aliases.
func (ph *PersonHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := ph.PersonRepo.ListAll()
	if err != nil {
		log.Printf("Error listing people: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to retrieve people")
		return
	}
	if people == nil {
		people = []models.Person{}
	}

	if query := strings.TrimSpace(r.URL.Query().Get("q")); query != "" {
		matchedIDs, err := ph.PersonRepo.FindPersonIDsByNameOrAlias(query)
		if err != nil {
			log.Printf("Error searching people for %q: %v", query, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to search people")
			return
		}
		matched := make(map[uint]bool, len(matchedIDs))
		for _, id := range matchedIDs {
			matched[id] = true
		}
		filtered := make([]models.Person, 0, len(matchedIDs))
		for _, person := range people {
			if matched[person.ID] {
				filtered = append(filtered, person)
			}
		}
		people = filtered
	}
	// Natural ordering so "Uncle Joe 2" sorts after "Uncle Joe" rather than
	// between "Uncle Joe 10" and "Uncle Joe 19".
	sort.SliceStable(people, func(i, j int) bool {
		return natsort.Compare(people[i].CanonicalName, people[j].CanonicalName)
	})
	writeJSON(w, http.StatusOK, people)
}

func (ph *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	personID, err := uintURLParam(r, "person_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid person ID format")
		return
	}

	person, err := ph.PersonRepo.GetByID(personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Person not found")
		} else {
			log.Printf("Error getting person %d: %v", personID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to retrieve person")
		}
		return
	}

	writeJSON(w, http.StatusOK, person)
}

func (ph *PersonHandler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	personID, err := uintURLParam(r, "person_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid person ID format")
		return
	}

	var req struct {
		CanonicalName string `json:"canonical_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.CanonicalName) == "" {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Missing required field: canonical_name")
		return
	}

	person, err := ph.PersonRepo.GetByID(personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Person not found")
		} else {
			log.Printf("Error loading person %d for update: %v", personID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to update person")
		}
		return
	}

	person.CanonicalName = strings.TrimSpace(req.CanonicalName)
	if err := ph.PersonRepo.Update(person); err != nil {
		log.Printf("Error updating person %d: %v", personID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to update person")
		return
	}

	writeJSON(w, http.StatusOK, person)
}

func (ph *PersonHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	personID, err := uintURLParam(r, "person_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid person ID format")
		return
	}

	if err := ph.PersonRepo.Delete(personID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Person not found")
		} else {
			log.Printf("Error deleting person %d: %v", personID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to delete person")
		}
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (ph *PersonHandler) AddAlias(w http.ResponseWriter, r *http.Request) {
	personID, err := uintURLParam(r, "person_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid person ID format")
		return
	}

	if _, err := ph.PersonRepo.GetByID(personID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Person not found")
		} else {
			log.Printf("Error checking person %d before adding alias: %v", personID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to verify person")
		}
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Missing required field: name")
		return
	}

	alias := &models.PersonAlias{PersonID: personID, Name: strings.TrimSpace(req.Name)}
	if err := ph.PersonRepo.AddAlias(alias); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "already exists") {
			WriteAPIError(w, http.StatusConflict, "CONFLICT", "Alias already exists for this person")
		} else {
			log.Printf("Error adding alias '%s' to person %d: %v", req.Name, personID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to add alias")
		}
		return
	}

	writeJSON(w, http.StatusCreated, alias)
}

func (ph *PersonHandler) DeleteAlias(w http.ResponseWriter, r *http.Request) {
	aliasID, err := uintURLParam(r, "alias_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid alias ID format")
		return
	}

	if err := ph.PersonRepo.DeleteAlias(aliasID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Alias not found")
		} else {
			log.Printf("Error deleting alias %d: %v", aliasID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to delete alias")
		}
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// SetVisibility updates a person's global disclosure preference directly,
// outside the claim flow. Only the contributor who created the person record
// may use it; everyone else goes through the claim flow, which is the consent
// channel for the person themselves.
func (ph *PersonHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	contributor := contributorFromContext(r)
	if contributor == nil {
		WriteAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	personID, err := uintURLParam(r, "person_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid person ID format")
		return
	}

	person, err := ph.PersonRepo.GetByID(personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Person not found")
		} else {
			log.Printf("Error loading person %d for visibility update: %v", personID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to set visibility")
		}
		return
	}
	if person.CreatedByID != contributor.ID {
		WriteAPIError(w, http.StatusForbidden, "FORBIDDEN", "Only the contributor who added this person may set their visibility")
		return
	}

	var req struct {
		Visibility string `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}

	level, err := visibility.ParseLevel(req.Visibility)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	if err := ph.VisibilitySvc.SetGlobalPreference(personID, level); err != nil {
		if errors.Is(err, visibility.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Person not found")
		} else {
			log.Printf("Error setting visibility for person %d: %v", personID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to set visibility")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"visibility": string(level)})
}
