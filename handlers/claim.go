package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/realtime"
	"github.com/Novakiki/kindredbackend/repository"
	"github.com/Novakiki/kindredbackend/visibility"
)

const defaultClaimTTLHours = 14 * 24

// ClaimHandler runs the out-of-band claim flow: an author issues a token for
// a person mentioned in a note, the recipient opens the link without an
// account, sees how they appear, and chooses their disclosure.
type ClaimHandler struct {
	ClaimTokenRepo repository.ClaimTokenRepositoryInterface
	NoteRepo       repository.NoteRepositoryInterface
	ReferenceRepo  repository.ReferenceRepositoryInterface
	VisibilitySvc  *visibility.Service
	Hub            *realtime.Hub
}

type CreateClaimPayload struct {
	RecipientName  string `json:"recipient_name"`
	PersonID       *uint  `json:"person_id,omitempty"`
	ExpiresInHours int    `json:"expires_in_hours,omitempty"`
}

// CreateClaimToken issues a claim link for a person mentioned in a note.
// Only the note's author may issue one.
func (ch *ClaimHandler) CreateClaimToken(w http.ResponseWriter, r *http.Request) {
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

	note, err := ch.NoteRepo.GetByID(noteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Note not found")
		} else {
			log.Printf("Error loading note %d for claim token: %v", noteID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to create claim token")
		}
		return
	}
	if note.AuthorID != contributor.ID {
		WriteAPIError(w, http.StatusForbidden, "FORBIDDEN", "Only the note's author may issue claim links")
		return
	}

	var payload CreateClaimPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(payload.RecipientName) == "" {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Missing required field: recipient_name")
		return
	}

	// Refuse to issue tokens that could never be redeemed.
	if _, _, err := visibility.MatchReference(payload.RecipientName, payload.PersonID, note.References); err != nil {
		WriteAPIError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "No reference on this note matches that recipient")
		return
	}

	ttl := payload.ExpiresInHours
	if ttl <= 0 {
		ttl = defaultClaimTTLHours
	}
	expiresAt := time.Now().Add(time.Duration(ttl) * time.Hour)

	token := &models.ClaimToken{
		NoteID:        noteID,
		PersonID:      payload.PersonID,
		RecipientName: strings.TrimSpace(payload.RecipientName),
		ExpiresAt:     &expiresAt,
	}
	if err := ch.ClaimTokenRepo.Create(token); err != nil {
		log.Printf("Error creating claim token for note %d: %v", noteID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to create claim token")
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

// ClaimView is what a claim link recipient sees: the note rendered with
// current redaction plus the matched mention and the choices open to them.
type ClaimView struct {
	NoteTitle   string                          `json:"note_title"`
	NoteContent string                          `json:"note_content"`
	References  []visibility.ProjectedReference `json:"references"`
	Match       visibility.ProjectedReference   `json:"match"`
	MatchKind   visibility.MatchKind            `json:"match_kind"`
	Levels      []visibility.Level              `json:"levels"`
	Scopes      []visibility.Scope              `json:"scopes"`
}

// VerifyClaim resolves a claim token to the mention it refers to.
func (ch *ClaimHandler) VerifyClaim(w http.ResponseWriter, r *http.Request) {
	_, note, matched, kind, ok := ch.loadClaim(w, r)
	if !ok {
		return
	}

	resolved, err := ch.VisibilitySvc.ResolveReferences(note)
	if err != nil {
		log.Printf("Error resolving references for claimed note %d: %v", note.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to resolve note")
		return
	}

	// The claimant manages their own row even when it is removed, so project
	// with the management payload and pick their reference out of it.
	projected := visibility.Project(resolved, visibility.ProjectOptions{IncludeAuthorPayload: true})
	var match *visibility.ProjectedReference
	visible := make([]visibility.ProjectedReference, 0, len(projected))
	for i := range projected {
		if projected[i].ReferenceID == matched.ID {
			match = &projected[i]
		}
		if projected[i].IdentityState != visibility.LevelRemoved {
			visible = append(visible, projected[i])
		}
	}
	if match == nil {
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to project matched reference")
		return
	}

	writeJSON(w, http.StatusOK, ClaimView{
		NoteTitle:   note.Title,
		NoteContent: visibility.MaskContent(note.Content, projected),
		References:  visible,
		Match:       *match,
		MatchKind:   kind,
		Levels: []visibility.Level{
			visibility.LevelApproved, visibility.LevelBlurred,
			visibility.LevelAnonymized, visibility.LevelRemoved,
		},
		Scopes: []visibility.Scope{
			visibility.ScopeThisNote, visibility.ScopeByAuthor, visibility.ScopeAllNotes,
		},
	})
}

type RespondClaimPayload struct {
	Visibility string `json:"visibility"`
	Scope      string `json:"scope,omitempty"`
}

// RespondClaim records the recipient's disclosure choice and spends the
// token. Unknown scopes degrade to this_note rather than failing.
func (ch *ClaimHandler) RespondClaim(w http.ResponseWriter, r *http.Request) {
	token, note, matched, _, ok := ch.loadClaim(w, r)
	if !ok {
		return
	}

	var payload RespondClaimPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}

	level, err := visibility.ParseLevel(payload.Visibility)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	scope := visibility.NormalizeScope(payload.Scope)

	if matched.PersonID == nil {
		// A free-text mention has no person record, so there is nothing to
		// attach a preference to. The choice still applies to this note.
		value := string(level)
		if err := ch.ReferenceRepo.UpdateOverride(matched.ID, &value); err != nil {
			log.Printf("Error setting override on reference %d: %v", matched.ID, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to record choice")
			return
		}
		scope = visibility.ScopeThisNote
	} else {
		choice := visibility.Choice{
			PersonID:    *matched.PersonID,
			ReferenceID: matched.ID,
			AuthorID:    note.AuthorID,
			Scope:       scope,
			Level:       level,
		}
		if err := ch.VisibilitySvc.ApplyChoice(choice); err != nil {
			if errors.Is(err, visibility.ErrNotFound) {
				WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Person or reference no longer exists")
			} else {
				log.Printf("Error applying visibility choice for token %s: %v", token.Token, err)
				WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to record choice")
			}
			return
		}
	}

	if err := ch.ClaimTokenRepo.MarkUsed(token.ID); err != nil {
		log.Printf("Error marking claim token %d used: %v", token.ID, err)
	}

	if ch.Hub != nil {
		personID := uint(0)
		if matched.PersonID != nil {
			personID = *matched.PersonID
		}
		ch.Hub.VisibilityChanged(note.ID, personID)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"visibility": string(level),
		"scope":      string(scope),
	})
}

// loadClaim validates the token URL parameter and matches it to a reference.
// On failure it writes the response itself and returns ok=false.
func (ch *ClaimHandler) loadClaim(w http.ResponseWriter, r *http.Request) (*models.ClaimToken, *models.Note, *models.EventReference, visibility.MatchKind, bool) {
	raw := chi.URLParam(r, "token")
	token, err := ch.ClaimTokenRepo.GetByToken(raw)
	if err != nil {
		WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Claim link not found")
		return nil, nil, nil, "", false
	}
	if !token.IsValid() {
		WriteAPIError(w, http.StatusGone, "GONE", "Claim link has expired")
		return nil, nil, nil, "", false
	}

	note, err := ch.NoteRepo.GetByID(token.NoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Note no longer exists")
		} else {
			log.Printf("Error loading note %d for claim token %s: %v", token.NoteID, token.Token, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to load note")
		}
		return nil, nil, nil, "", false
	}

	matched, kind, err := visibility.MatchReference(token.RecipientName, token.PersonID, note.References)
	if err != nil {
		if errors.Is(err, visibility.ErrAmbiguousMatch) {
			WriteAPIError(w, http.StatusConflict, "CONFLICT", "Could not determine which mention this link refers to")
		} else {
			WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "This note no longer mentions anyone to claim")
		}
		return nil, nil, nil, "", false
	}
	return token, note, matched, kind, true
}
