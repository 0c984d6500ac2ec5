package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/secrets"
)

func credentialsCommand() *cli.Command {
	return &cli.Command{
		Name:  "credentials",
		Usage: "manage the cloud account credentials document",
		Subcommands: []*cli.Command{
			{
				Name:  "save",
				Usage: "validate and store credentials in a directory, the S3 bucket or a nix-secrets repo",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "login-id", Required: true},
					&cli.StringFlag{Name: "password", EnvVars: []string{"GOHOME_PURIFIER_PASSWORD"}, Required: true},
					&cli.StringFlag{Name: "token", EnvVars: []string{"GOHOME_PURIFIER_TOKEN"}, Required: true},
					&cli.StringFlag{Name: "name", Value: config.DefaultCredentialsName},
					&cli.StringFlag{Name: "store", Value: "file", Usage: "file, s3 or agenix"},
					&cli.StringFlag{Name: "dir", Usage: "directory for the file store"},
					&cli.StringFlag{Name: "agenix-repo", EnvVars: []string{"GOHOME_AGENIX_REPO"}},
					&cli.StringFlag{Name: "agenix-rules"},
					&cli.StringSliceFlag{Name: "recipient"},
				},
				Action: saveCredentials,
			},
		},
	}
}

func saveCredentials(c *cli.Context) error {
	store, err := credentialsStore(c)
	if err != nil {
		return err
	}
	creds := secrets.Credentials{
		LoginID:  strings.TrimSpace(c.String("login-id")),
		Password: c.String("password"),
		Token:    strings.TrimSpace(c.String("token")),
	}

	ctx, cancel := timeoutContext(c)
	defer cancel()
	if err := secrets.SaveCredentials(ctx, store, c.String("name"), creds); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "saved %s credentials to %s store\n", c.String("name"), c.String("store"))
	return nil
}

func credentialsStore(c *cli.Context) (secrets.BlobStore, error) {
	switch c.String("store") {
	case "file":
		dir := c.String("dir")
		if dir == "" {
			cfg, err := loadConfig(c)
			if err != nil {
				return nil, fmt.Errorf("--dir not set and config unavailable: %w", err)
			}
			dir = cfg.Purifier.CredentialsDir
		}
		if dir == "" {
			return nil, fmt.Errorf("--dir is required")
		}
		return secrets.FileStore{Dir: dir}, nil
	case "s3":
		cfg, err := loadConfig(c)
		if err != nil {
			return nil, err
		}
		return secrets.NewS3Store(cfg.Blob)
	case "agenix":
		repo := c.String("agenix-repo")
		if repo == "" {
			return nil, fmt.Errorf("--agenix-repo is required")
		}
		return secrets.AgenixStore{
			RepoPath:   repo,
			RulesPath:  c.String("agenix-rules"),
			Recipients: c.StringSlice("recipient"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", c.String("store"))
	}
}
