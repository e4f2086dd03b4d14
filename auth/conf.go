package auth

import (
	"fmt"

	"golang.org/x/oauth2/clientcredentials"
)

// DefaultAPIKeyHeader carries a static key when no header is configured.
const DefaultAPIKeyHeader = "auth-token"

// Conf describes how a forecast API authenticates callers. A token URL
// selects the client-credentials flow; otherwise a non-empty APIKey is sent
// as a plain header.
type Conf struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURL      string   `json:"auth_url"`
	Scopes       []string `json:"scopes"`
	APIKey       string   `json:"api_key"`
	APIKeyHeader string   `json:"api_key_header"`
}

// Enabled reports whether any credentials are configured.
func (c Conf) Enabled() bool { return c.AuthURL != "" || c.APIKey != "" }

// Validate rejects configurations that mix both schemes.
func (c Conf) Validate() error {
	if c.AuthURL != "" && c.APIKey != "" {
		return fmt.Errorf("auth: auth_url and api_key are mutually exclusive")
	}
	if c.AuthURL != "" && c.ClientID == "" {
		return fmt.Errorf("auth: client_id is required with auth_url")
	}
	return nil
}

func (c Conf) clientCredentials() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
		Scopes:       c.Scopes,
	}
}
