package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
	"github.com/Novakiki/kindredbackend/visibility"
)

type NoteHandler struct {
	NoteRepo      repository.NoteRepositoryInterface
	VisibilitySvc *visibility.Service
}

// ReferenceInput is an inline mention included at note creation time.
type ReferenceInput struct {
	Type                  string  `json:"type"`
	PersonID              *uint   `json:"person_id,omitempty"`
	DisplayName           *string `json:"display_name,omitempty"`
	URL                   *string `json:"url,omitempty"`
	Role                  string  `json:"role,omitempty"`
	RelationshipToSubject *string `json:"relationship_to_subject,omitempty"`
}

type CreateNotePayload struct {
	Title      string           `json:"title"`
	Content    string           `json:"content"`
	References []ReferenceInput `json:"references,omitempty"`
}

// NoteResponse is the redacted shape every reader receives: content with
// un-consented names masked out, and references projected to render labels.
type NoteResponse struct {
	ID         uint                            `json:"id"`
	Title      string                          `json:"title"`
	Content    string                          `json:"content"`
	AuthorID   uint                            `json:"author_id"`
	CreatedAt  int64                           `json:"created_at"`
	References []visibility.ProjectedReference `json:"references"`
}

func (nh *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	contributor := contributorFromContext(r)
	if contributor == nil {
		WriteAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var payload CreateNotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(payload.Title) == "" {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Missing required field: title")
		return
	}

	note := &models.Note{
		Title:    strings.TrimSpace(payload.Title),
		Content:  payload.Content,
		AuthorID: contributor.ID,
	}
	for _, in := range payload.References {
		ref, err := buildReference(in, contributor.ID)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		note.References = append(note.References, *ref)
	}

	if err := nh.NoteRepo.Create(note); err != nil {
		log.Printf("Error creating note '%s': %v", payload.Title, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to create note")
		return
	}

	created, err := nh.NoteRepo.GetByID(note.ID)
	if err != nil {
		log.Printf("Error fetching newly created note %d: %v", note.ID, err)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Note created successfully", "id": note.ID})
		return
	}

	// The creation echo goes through the same resolve and project pipeline as
	// every read; raw rows with real names never reach a response body.
	resolved, err := nh.VisibilitySvc.ResolveReferences(created)
	if err != nil {
		log.Printf("Error resolving references for new note %d: %v", created.ID, err)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Note created successfully", "id": created.ID})
		return
	}
	projected := visibility.Project(resolved, visibility.ProjectOptions{IncludeAuthorPayload: true})
	writeJSON(w, http.StatusCreated, NoteResponse{
		ID:         created.ID,
		Title:      created.Title,
		Content:    visibility.MaskContent(created.Content, projected),
		AuthorID:   created.AuthorID,
		CreatedAt:  created.CreatedAt.Unix(),
		References: projected,
	})
}

func (nh *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := nh.NoteRepo.ListAll()
	if err != nil {
		log.Printf("Error listing notes: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to retrieve notes")
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}

	summaries := make([]map[string]interface{}, 0, len(notes))
	for _, note := range notes {
		summaries = append(summaries, map[string]interface{}{
			"id":         note.ID,
			"title":      note.Title,
			"author_id":  note.AuthorID,
			"created_at": note.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetNote renders a note for the requesting viewer. The note's author may
// request their management payload, which keeps removed references in the
// output (nameless); everyone else gets them dropped.
func (nh *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := uintURLParam(r, "note_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid note ID format")
		return
	}

	note, err := nh.NoteRepo.GetByID(noteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Note not found")
		} else {
			log.Printf("Error getting note %d: %v", noteID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to retrieve note")
		}
		return
	}

	resolved, err := nh.VisibilitySvc.ResolveReferences(note)
	if err != nil {
		log.Printf("Error resolving references for note %d: %v", noteID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to resolve note visibility")
		return
	}

	contributor := contributorFromContext(r)
	opts := visibility.ProjectOptions{}
	if r.URL.Query().Get("include_author_payload") == "true" &&
		contributor != nil && contributor.ID == note.AuthorID {
		opts.IncludeAuthorPayload = true
	}

	projected := visibility.Project(resolved, opts)
	writeJSON(w, http.StatusOK, NoteResponse{
		ID:         note.ID,
		Title:      note.Title,
		Content:    visibility.MaskContent(note.Content, projected),
		AuthorID:   note.AuthorID,
		CreatedAt:  note.CreatedAt.Unix(),
		References: projected,
	})
}

func (nh *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
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

	note, err := nh.NoteRepo.GetByID(noteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Note not found")
		} else {
			log.Printf("Error loading note %d for delete: %v", noteID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to delete note")
		}
		return
	}
	if note.AuthorID != contributor.ID {
		WriteAPIError(w, http.StatusForbidden, "FORBIDDEN", "Only the note's author may delete it")
		return
	}

	if err := nh.NoteRepo.Delete(noteID); err != nil {
		log.Printf("Error deleting note %d: %v", noteID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to delete note")
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// buildReference validates one inline mention and fills defaults.
func buildReference(in ReferenceInput, addedByID uint) (*models.EventReference, error) {
	refType := in.Type
	if refType == "" {
		refType = models.ReferenceTypePerson
	}
	if refType != models.ReferenceTypePerson && refType != models.ReferenceTypeLink {
		return nil, errors.New("reference type must be person or link")
	}
	role := in.Role
	if role == "" {
		role = models.RoleRelated
	}

	ref := &models.EventReference{
		Type:                  refType,
		PersonID:              in.PersonID,
		DisplayName:           in.DisplayName,
		URL:                   in.URL,
		Role:                  role,
		RelationshipToSubject: in.RelationshipToSubject,
		AddedByID:             addedByID,
	}
	if refType == models.ReferenceTypeLink && (in.URL == nil || strings.TrimSpace(*in.URL) == "") {
		return nil, errors.New("link references require a url")
	}
	if refType == models.ReferenceTypePerson && in.PersonID == nil &&
		(in.DisplayName == nil || strings.TrimSpace(*in.DisplayName) == "") {
		return nil, errors.New("person references require a person_id or display_name")
	}
	return ref, nil
}
