package purifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/rate"
	"github.com/joshp123/gohome-purifier/internal/secrets"
)

// Config defines runtime configuration for the purifier client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials secrets.Credentials
	Rate        rate.Declaration
	MQTT        config.MQTTConfig
}

// ConfigFromFile resolves the daemon config into a runtime config, loading
// credentials from the configured store when they are not inline.
func ConfigFromFile(ctx context.Context, cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("purifier config is required")
	}

	creds, err := resolveCredentials(ctx, cfg)
	if err != nil {
		return Config{}, err
	}

	baseURL := strings.TrimSpace(cfg.Purifier.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return Config{
		BaseURL:     baseURL,
		Timeout:     cfg.Purifier.RequestTimeout,
		Credentials: creds,
		Rate:        rateLimits(cfg.Rate),
		MQTT:        cfg.MQTT,
	}, nil
}

func resolveCredentials(ctx context.Context, cfg *config.Config) (secrets.Credentials, error) {
	p := cfg.Purifier
	if p.InlineCredentials() {
		creds := secrets.Credentials{
			SchemaVersion: secrets.SchemaVersion,
			LoginID:       p.LoginID,
			Password:      p.Password,
			Token:         p.Token,
			TokenType:     p.TokenType,
		}
		return creds, creds.Validate()
	}

	store, err := credentialStore(cfg)
	if err != nil {
		return secrets.Credentials{}, err
	}
	return secrets.LoadCredentials(ctx, store, p.CredentialsBlob)
}

// credentialStore prefers the S3 bucket over a local directory.
func credentialStore(cfg *config.Config) (secrets.BlobStore, error) {
	if cfg.Blob.Enabled() {
		return secrets.NewS3Store(cfg.Blob)
	}
	if cfg.Purifier.CredentialsDir != "" {
		return secrets.FileStore{Dir: cfg.Purifier.CredentialsDir}, nil
	}
	return nil, fmt.Errorf("no credential store configured")
}

func rateLimits(cfg config.RateConfig) rate.Declaration {
	decl := rate.Provider("purifier").ReadHeaders(rate.StandardHeaders())
	if cfg.MaxPerMinute > 0 {
		decl = decl.MaxRequestsPer(rate.Minute, cfg.MaxPerMinute)
	}
	if cfg.MaxPerDay > 0 {
		decl = decl.MaxRequestsPer(rate.Day, cfg.MaxPerDay)
	}
	if cfg.BudgetFloor > 0 {
		decl = decl.BudgetFloor(rate.Minute, cfg.BudgetFloor).BudgetFloor(rate.Day, cfg.BudgetFloor)
	}
	return decl
}
