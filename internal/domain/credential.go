package domain

// Credential is the OAuth client identity used against the CRM.
// An empty AccessToken means no bearer token is currently held.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// CanRefresh reports whether the refresh grant has everything it needs.
func (c Credential) CanRefresh() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}
