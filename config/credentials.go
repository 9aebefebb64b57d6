// ABOUTME: Local cache of the CRM API key, kept outside the synced store
// ABOUTME: Stored 0600 under the config dir; LEADSYNC_API_KEY overrides it
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const APIKeyEnv = "LEADSYNC_API_KEY"

type Credentials struct {
	APIKey     string    `json:"api_key"`
	LocationID string    `json:"location_id,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

func CredentialsPath() string {
	return filepath.Join(Dir(), "credentials.json")
}

// SaveCredentials writes creds to path (CredentialsPath when empty).
func SaveCredentials(path string, creds *Credentials) error {
	if creds == nil || strings.TrimSpace(creds.APIKey) == "" {
		return errors.New("refusing to save empty credentials")
	}
	if path == "" {
		path = CredentialsPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials dir: %w", err)
	}

	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// LoadCredentials returns the cached credentials, or nil when there are
// none. A set LEADSYNC_API_KEY wins over the file.
func LoadCredentials(path string) (*Credentials, error) {
	if path == "" {
		path = CredentialsPath()
	}

	var creds *Credentials
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		creds = &Credentials{}
		if err := json.Unmarshal(data, creds); err != nil {
			return nil, fmt.Errorf("failed to parse credentials: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		if creds == nil {
			creds = &Credentials{}
		}
		creds.APIKey = key
	}
	return creds, nil
}

// DeleteCredentials removes the cache. A missing file is not an error.
func DeleteCredentials(path string) error {
	if path == "" {
		path = CredentialsPath()
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
