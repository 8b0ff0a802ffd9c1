package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Novakiki/kindredbackend/models"
	"github.com/Novakiki/kindredbackend/repository"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserContextKey is the key used to store the contributor in the request context.
	UserContextKey ContextKey = "contributor"
)

// AuthMiddleware creates a middleware handler for JWT authentication.
// It verifies the token and, if valid, fetches the contributor and adds them
// to the request context.
func AuthMiddleware(jwtSecret []byte, contributorRepo repository.ContributorRepositoryInterface, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "Authorization header format must be Bearer {token}", http.StatusUnauthorized)
			return
		}
		tokenString := parts[1]

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return jwtSecret, nil
		})

		if err != nil {
			if err == jwt.ErrSignatureInvalid {
				http.Error(w, "Invalid token signature", http.StatusUnauthorized)
				return
			}
			http.Error(w, "Invalid token: "+err.Error(), http.StatusUnauthorized)
			return
		}

		if !token.Valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		var contributorID uint
		if _, err := fmt.Sscan(claims.Subject, &contributorID); err != nil {
			http.Error(w, "Invalid contributor ID in token", http.StatusUnauthorized)
			fmt.Printf("Error parsing contributor ID from token subject '%s': %v\n", claims.Subject, err)
			return
		}

		contributor, err := contributorRepo.GetByID(contributorID)
		if err != nil {
			// This could happen if the contributor was deleted after the token was issued.
			http.Error(w, "Contributor not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, contributor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// contributorFromContext pulls the authenticated contributor set by
// AuthMiddleware, or nil on unauthenticated routes.
func contributorFromContext(r *http.Request) *models.Contributor {
	contributor, ok := r.Context().Value(UserContextKey).(*models.Contributor)
	if !ok {
		return nil
	}
	return contributor
}
