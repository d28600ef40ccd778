// Package oauth holds the CRM credential and keeps its bearer token fresh.
package oauth

import (
	"sync/atomic"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// CredentialStore holds the process-wide CRM credential.
// The client identity and refresh token are fixed at construction; only the
// access token changes, and only TokenRefresher writes it. Reads never block.
type CredentialStore struct {
	clientID     string
	clientSecret string
	refreshToken string
	accessToken  atomic.Pointer[string]
}

// NewCredentialStore seeds the store from cred. An empty AccessToken leaves the store unauthenticated.
func NewCredentialStore(cred domain.Credential) *CredentialStore {
	s := &CredentialStore{
		clientID:     cred.ClientID,
		clientSecret: cred.ClientSecret,
		refreshToken: cred.RefreshToken,
	}
	if cred.AccessToken != "" {
		token := cred.AccessToken
		s.accessToken.Store(&token)
	}
	return s
}

// Get returns a snapshot of the credential.
func (s *CredentialStore) Get() domain.Credential {
	return domain.Credential{
		AccessToken:  s.AccessToken(),
		RefreshToken: s.refreshToken,
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
	}
}

// AccessToken returns the current bearer token or "".
func (s *CredentialStore) AccessToken() string {
	if p := s.accessToken.Load(); p != nil {
		return *p
	}
	return ""
}

// SetAccessToken replaces the bearer token, leaving the rest of the credential untouched.
func (s *CredentialStore) SetAccessToken(token string) {
	s.accessToken.Store(&token)
}
