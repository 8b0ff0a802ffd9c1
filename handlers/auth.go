package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Novakiki/kindredbackend/invites"
	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
)

type AuthHandler struct {
	ContributorRepo repository.ContributorRepositoryInterface
	InviteSvc       *invites.Service
	JWTSecret       []byte
	JWTExpiryHours  int
}

func NewAuthHandler(contributorRepo repository.ContributorRepositoryInterface, inviteSvc *invites.Service, jwtSecret []byte, jwtExpiryHours int) *AuthHandler {
	return &AuthHandler{
		ContributorRepo: contributorRepo,
		InviteSvc:       inviteSvc,
		JWTSecret:       jwtSecret,
		JWTExpiryHours:  jwtExpiryHours,
	}
}

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token       string             `json:"token"`
	Contributor models.Contributor `json:"contributor"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	contributor, err := h.ContributorRepo.GetByEmail(strings.ToLower(strings.TrimSpace(payload.Email)))
	if err != nil {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if !contributor.CheckPassword(payload.Password) {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	expirationTime := time.Now().Add(time.Duration(h.JWTExpiryHours) * time.Hour)
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(contributor.ID),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    "kindredbackend",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.JWTSecret)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	response := LoginResponse{
		Token:       tokenString,
		Contributor: *contributor,
		ExpiresAt:   expirationTime,
	}

	writeJSON(w, http.StatusOK, response)
}

type RegisterPayload struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	InviteCode  string `json:"invite_code"`
}

// Register creates a contributor account from an invite. The invite must
// still be valid; a successful registration is what moves it to its terminal
// contributed status.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if payload.Email == "" || payload.Password == "" || payload.InviteCode == "" {
		http.Error(w, "Email, password, and invite code are required", http.StatusBadRequest)
		return
	}
	if payload.DisplayName == "" {
		payload.DisplayName = payload.Email
	}

	invite, err := h.InviteSvc.MarkOpened(payload.InviteCode)
	if err != nil {
		http.Error(w, "Invalid or expired invite code", http.StatusForbidden)
		return
	}

	newContributor := &models.Contributor{
		Email:       strings.ToLower(strings.TrimSpace(payload.Email)),
		DisplayName: payload.DisplayName,
	}
	if err := newContributor.SetPassword(payload.Password); err != nil {
		http.Error(w, "Failed to hash password: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.ContributorRepo.Create(newContributor); err != nil {
		http.Error(w, "Failed to create contributor: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.InviteSvc.MarkContributed(invite.ID); err != nil {
		// The account exists; the invite bookkeeping failing is not worth
		// unwinding the registration over.
		fmt.Printf("WARNING: contributor %s registered but invite %d could not be marked contributed: %v\n", newContributor.Email, invite.ID, err)
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Registered successfully. Please log in."})
}

// CurrentUser retrieves the authenticated contributor from the request
// context. This handler must be protected by the AuthMiddleware.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	contributor := contributorFromContext(r)
	if contributor == nil {
		http.Error(w, "Could not retrieve contributor from context", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, contributor)
}
