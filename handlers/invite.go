package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Novakiki/kindredbackend/invites"
	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/realtime"
	"github.com/Novakiki/kindredbackend/workers"
)

type InviteHandler struct {
	InviteSvc  *invites.Service
	Dispatcher *workers.InviteDispatcher
	Hub        *realtime.Hub
	// ClaimBaseURL is prefixed to invite codes to form the link sent to
	// recipients.
	ClaimBaseURL string
}

type CreateInvitePayload struct {
	NoteID           *uint  `json:"note_id,omitempty"`
	RecipientName    string `json:"recipient_name"`
	RecipientContact string `json:"recipient_contact"`
	Channel          string `json:"channel,omitempty"`
	ParentInviteID   *uint  `json:"parent_invite_id,omitempty"`
}

// CreateInvite validates the chain position, persists the invite and queues
// its delivery. A chain that would exceed the propagation bounds is rejected
// before anything is written.
func (ih *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	contributor := contributorFromContext(r)
	if contributor == nil {
		WriteAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var payload CreateInvitePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(payload.RecipientName) == "" || strings.TrimSpace(payload.RecipientContact) == "" {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "recipient_name and recipient_contact are required")
		return
	}
	channel := payload.Channel
	if channel == "" {
		channel = "email"
	}
	if channel != "email" && channel != "sms" {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "channel must be email or sms")
		return
	}

	invite, err := ih.InviteSvc.Create(invites.CreateInput{
		NoteID:           payload.NoteID,
		RecipientName:    strings.TrimSpace(payload.RecipientName),
		RecipientContact: strings.TrimSpace(payload.RecipientContact),
		Channel:          channel,
		ParentInviteID:   payload.ParentInviteID,
		CreatedByID:      contributor.ID,
	})
	if err != nil {
		if errors.Is(err, invites.ErrPropagationLimitExceeded) {
			WriteAPIError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		} else {
			log.Printf("Error creating invite for %s: %v", payload.RecipientName, err)
			WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to create invite")
		}
		return
	}

	ih.Dispatcher.QueueJob(workers.InviteJob{
		InviteID: invite.ID,
		ClaimURL: fmt.Sprintf("%s/invites/%s", ih.ClaimBaseURL, invite.Code),
	})
	if ih.Hub != nil {
		ih.Hub.Broadcast(realtime.Event{Type: realtime.EventInviteUpdated, InviteID: invite.ID})
	}

	writeJSON(w, http.StatusCreated, invite)
}

// OpenInvite records that a recipient followed their invite link and returns
// the invite so the client can start registration or claiming.
func (ih *InviteHandler) OpenInvite(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	invite, err := ih.InviteSvc.MarkOpened(code)
	if err != nil {
		WriteAPIError(w, http.StatusNotFound, "NOT_FOUND", "Invite not found or no longer valid")
		return
	}
	if ih.Hub != nil {
		ih.Hub.Broadcast(realtime.Event{Type: realtime.EventInviteUpdated, InviteID: invite.ID})
	}
	writeJSON(w, http.StatusOK, invite)
}

// ListChain returns the direct children an invite has spawned.
func (ih *InviteHandler) ListChain(w http.ResponseWriter, r *http.Request) {
	inviteID, err := uintURLParam(r, "invite_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid invite ID format")
		return
	}

	children, err := ih.InviteSvc.Chain(inviteID)
	if err != nil {
		log.Printf("Error listing children of invite %d: %v", inviteID, err)
		WriteAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Failed to list invite chain")
		return
	}
	if children == nil {
		children = []models.Invite{}
	}
	writeJSON(w, http.StatusOK, children)
}
