package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/Novakiki/kindredbackend/repository"
	"github.com/Novakiki/kindredbackend/services"
	"github.com/Novakiki/kindredbackend/visibility"
)

type ChatHandler struct {
	NoteRepo      repository.NoteRepositoryInterface
	VisibilitySvc *visibility.Service
	ChatSvc       *services.ChatService
}

type ChatPayload struct {
	Question string `json:"question"`
}

// AskNote answers a question about a note. The model only ever sees the
// redacted rendering, so its answer cannot disclose a name the reader could
// not already see on the note page.
func (chh *ChatHandler) AskNote(w http.ResponseWriter, r *http.Request) {
	if !chh.ChatSvc.Enabled() {
		WriteAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Chat is not configured")
		return
	}

	noteID, err := uintURLParam(r, "note_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid note ID format")
		return
	}

	var payload ChatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(payload.Question) == "" {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Missing required field: question")
		return
	}

	note, err := chh.NoteRepo.GetByID(noteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Note not found")
		} else {
			log.Printf("Error getting note %d for chat: %v", noteID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to retrieve note")
		}
		return
	}

	resolved, err := chh.VisibilitySvc.ResolveReferences(note)
	if err != nil {
		log.Printf("Error resolving references for chat on note %d: %v", noteID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to resolve note")
		return
	}
	projected := visibility.Project(resolved, visibility.ProjectOptions{})

	answer, err := chh.ChatSvc.Answer(r.Context(), note, projected, payload.Question)
	if err != nil {
		log.Printf("Error answering chat question on note %d: %v", noteID, err)
		WriteAPIError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
