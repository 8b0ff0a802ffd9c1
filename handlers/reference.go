package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/Novakiki/kindredbackend/repository"
	"github.com/Novakiki/kindredbackend/visibility"
)

type ReferenceHandler struct {
	NoteRepo      repository.NoteRepositoryInterface
	ReferenceRepo repository.ReferenceRepositoryInterface
	VisibilitySvc *visibility.Service
}

// AddReference attaches a mention to an existing note.
func (rh *ReferenceHandler) AddReference(w http.ResponseWriter, r *http.Request) {
	contributor := contributorFromContext(r)
	if contributor == nil {
		WriteAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	noteID, err := uintURLParam(r, "note_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid note ID format")
		return
	}
	if _, err := rh.NoteRepo.GetByID(noteID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Note not found")
		} else {
			log.Printf("Error checking note %d before adding reference: %v", noteID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to verify note")
		}
		return
	}

	var in ReferenceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}

	ref, err := buildReference(in, contributor.ID)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	ref.NoteID = noteID

	if err := rh.ReferenceRepo.Create(ref); err != nil {
		log.Printf("Error adding reference to note %d: %v", noteID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to add reference")
		return
	}

	// Echo the projected shape, never the stored row.
	note, err := rh.NoteRepo.GetByID(noteID)
	if err != nil {
		log.Printf("Error reloading note %d after adding reference: %v", noteID, err)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Reference added successfully", "id": ref.ID})
		return
	}
	resolved, err := rh.VisibilitySvc.ResolveReferences(note)
	if err != nil {
		log.Printf("Error resolving references for note %d: %v", noteID, err)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Reference added successfully", "id": ref.ID})
		return
	}
	opts := visibility.ProjectOptions{IncludeAuthorPayload: contributor.ID == note.AuthorID}
	for _, projected := range visibility.Project(resolved, opts) {
		if projected.ReferenceID == ref.ID {
			writeJSON(w, http.StatusCreated, projected)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Reference added successfully", "id": ref.ID})
}

// ListReferences returns the projected references for a note; it never leaks
// raw reference rows.
func (rh *ReferenceHandler) ListReferences(w http.ResponseWriter, r *http.Request) {
	noteID, err := uintURLParam(r, "note_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid note ID format")
		return
	}

	note, err := rh.NoteRepo.GetByID(noteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Note not found")
		} else {
			log.Printf("Error getting note %d for references: %v", noteID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to retrieve references")
		}
		return
	}

	resolved, err := rh.VisibilitySvc.ResolveReferences(note)
	if err != nil {
		log.Printf("Error resolving references for note %d: %v", noteID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to resolve references")
		return
	}

	contributor := contributorFromContext(r)
	opts := visibility.ProjectOptions{}
	if r.URL.Query().Get("include_author_payload") == "true" &&
		contributor != nil && contributor.ID == note.AuthorID {
		opts.IncludeAuthorPayload = true
	}

	writeJSON(w, http.StatusOK, visibility.Project(resolved, opts))
}

// DeleteReference removes a mention from a note. Only the note's author or
// the contributor who added the reference may remove it.
func (rh *ReferenceHandler) DeleteReference(w http.ResponseWriter, r *http.Request) {
	contributor := contributorFromContext(r)
	if contributor == nil {
		WriteAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	refID, err := uintURLParam(r, "reference_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid reference ID format")
		return
	}

	ref, err := rh.ReferenceRepo.GetByID(refID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Reference not found")
		} else {
			log.Printf("Error loading reference %d: %v", refID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to delete reference")
		}
		return
	}

	note, err := rh.NoteRepo.GetByID(ref.NoteID)
	if err != nil {
		log.Printf("Error loading note %d for reference delete: %v", ref.NoteID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to delete reference")
		return
	}
	if contributor.ID != note.AuthorID && contributor.ID != ref.AddedByID {
		WriteAPIError(w, http.StatusForbidden, "FORBIDDEN", "Not allowed to remove this reference")
		return
	}

	if err := rh.ReferenceRepo.Delete(refID); err != nil {
		log.Printf("Error deleting reference %d: %v", refID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to delete reference")
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}
