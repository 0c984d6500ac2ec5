package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const SchemaVersion = 1

// Credentials is the JSON document holding cloud account secrets.
type Credentials struct {
	SchemaVersion int    `json:"schema_version"`
	LoginID       string `json:"login_id"`
	Password      string `json:"password"`
	Token         string `json:"token"`
	// TokenType prefixes the token in the Authorization header. Empty sends
	// the token as stored.
	TokenType string `json:"token_type,omitempty"`
}

func (c Credentials) Validate() error {
	if c.SchemaVersion != 0 && c.SchemaVersion != SchemaVersion {
		return fmt.Errorf("credentials schema_version must be %d", SchemaVersion)
	}
	if strings.TrimSpace(c.LoginID) == "" {
		return fmt.Errorf("credentials login_id is required")
	}
	if strings.TrimSpace(c.Password) == "" {
		return fmt.Errorf("credentials password is required")
	}
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("credentials token is required")
	}
	return nil
}

func DecodeCredentials(data []byte) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// LoadCredentials reads and validates the named credentials document.
func LoadCredentials(ctx context.Context, store BlobStore, name string) (Credentials, error) {
	data, err := store.Load(ctx, name)
	if err != nil {
		return Credentials{}, fmt.Errorf("load credentials %q: %w", name, err)
	}
	return DecodeCredentials(data)
}

// SaveCredentials validates and writes creds under name.
func SaveCredentials(ctx context.Context, store BlobStore, name string, creds Credentials) error {
	if creds.SchemaVersion == 0 {
		creds.SchemaVersion = SchemaVersion
	}
	if err := creds.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return store.Save(ctx, name, data)
}
