// ABOUTME: API token storage at XDG paths
// ABOUTME: Saves, loads, and deletes the bearer token used by the HTTP transport
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/harperreed/salesdesk/config"
	"golang.org/x/oauth2"
)

// TokenPath returns XDG-compliant path for storing the API token.
func TokenPath() string {
	return filepath.Join(xdg.DataHome, config.AppName, "token.json")
}

// TokenStore keeps one oauth2 token in a file readable only by the user.
type TokenStore struct {
	path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Save writes token, creating the directory if needed.
func (s *TokenStore) Save(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("token is empty")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// Load returns the saved token, or nil when the user has not logged in.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// Delete removes the saved token. Deleting a missing token is not an error.
func (s *TokenStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// TokenSource returns a source for the saved token, or nil when there is
// none.
func (s *TokenStore) TokenSource() (oauth2.TokenSource, error) {
	token, err := s.Load()
	if err != nil || token == nil {
		return nil, err
	}
	return oauth2.StaticTokenSource(token), nil
}
