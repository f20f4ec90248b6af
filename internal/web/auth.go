package web

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AuthManager checks HTTP basic credentials against a bcrypt hash.
type AuthManager struct {
	username string
	password []byte // bcrypt hash
}

func NewAuthManager(username, passwordHash string) *AuthManager {
	return &AuthManager{
		username: username,
		password: []byte(passwordHash),
	}
}

// HashPassword returns the bcrypt hash stored as web.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (a *AuthManager) ValidateCredentials(username, password string) bool {
	if len(a.password) == 0 {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) != 1 {
		return false
	}

	err := bcrypt.CompareHashAndPassword(a.password, []byte(password))
	return err == nil
}

func (a *AuthManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !a.ValidateCredentials(username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="mail-idler"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		slog.Debug("Authenticated request", "user", username, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
