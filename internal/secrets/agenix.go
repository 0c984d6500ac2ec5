package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrWriteOnly is returned by stores that can only persist documents.
var ErrWriteOnly = errors.New("secret store is write-only")

// AgenixStore encrypts credential documents into a nix-secrets repo. The
// host decrypts them at activation time, so the daemon reads them back
// through a FileStore pointed at the decrypted directory.
type AgenixStore struct {
	RepoPath   string
	RulesPath  string
	Recipients []string
	Exec       string
	// SkipRules leaves secrets.nix untouched.
	SkipRules bool
}

func (s AgenixStore) Load(context.Context, string) ([]byte, error) {
	return nil, ErrWriteOnly
}

func (s AgenixStore) Save(ctx context.Context, name string, data []byte) error {
	_, err := s.Write(ctx, name, data)
	return err
}

// Write encrypts data as gohome-<name>.age and returns the file written.
func (s AgenixStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if s.RepoPath == "" {
		return "", fmt.Errorf("agenix repo path is required")
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("agenix secret name is required")
	}
	secretName := AgenixSecretName(name)
	secretPath := filepath.Join(s.RepoPath, secretName)

	rules := s.RulesPath
	if rules == "" {
		rules = filepath.Join(s.RepoPath, "secrets.nix")
	}

	if !s.SkipRules {
		recipients := s.Recipients
		if len(recipients) == 0 {
			var err error
			if recipients, err = gohomeRecipients(rules); err != nil {
				return "", err
			}
		}
		if err := ensureRule(rules, secretName, recipients); err != nil {
			return "", err
		}
	}

	execName := s.Exec
	if execName == "" {
		execName = "agenix"
	}

	cmd := exec.CommandContext(ctx, execName, "-e", secretPath)
	cmd.Env = append(os.Environ(),
		"RULES="+rules,
		"EDITOR=cp /dev/stdin",
	)
	cmd.Stdin = bytes.NewReader(data)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("agenix: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return secretPath, nil
}

// AgenixSecretName maps a credentials name to its encrypted file name.
func AgenixSecretName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".age")
	if !strings.HasPrefix(name, "gohome-") {
		name = "gohome-" + name
	}
	return name + ".age"
}

// ensureRule appends a publicKeys entry for secretName unless one exists.
func ensureRule(rulesPath, secretName string, recipients []string) error {
	info, err := os.Stat(rulesPath)
	if err != nil {
		return fmt.Errorf("stat secrets.nix: %w", err)
	}
	content, err := os.ReadFile(rulesPath)
	if err != nil {
		return fmt.Errorf("read secrets.nix: %w", err)
	}
	pattern := regexp.MustCompile(regexp.QuoteMeta(`"`+secretName+`"`) + `\s*\.publicKeys`)
	if pattern.Match(content) {
		return nil
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients available for %s", secretName)
	}

	idx := strings.LastIndex(string(content), "\n}")
	if idx == -1 {
		return fmt.Errorf("secrets.nix missing closing brace")
	}
	entry := fmt.Sprintf("  %q.publicKeys = [ %s ];\n", secretName, strings.Join(recipients, " "))
	updated := string(content[:idx]) + "\n" + entry + string(content[idx:])
	return os.WriteFile(rulesPath, []byte(updated), info.Mode().Perm()|0o600)
}

var recipientsPattern = regexp.MustCompile(`"gohome-[^"]+\.age"\s*\.publicKeys\s*=\s*\[([^\]]+)\]`)

// gohomeRecipients borrows the recipient list of an existing gohome secret.
func gohomeRecipients(rulesPath string) ([]string, error) {
	content, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("read secrets.nix: %w", err)
	}
	match := recipientsPattern.FindSubmatch(content)
	if len(match) < 2 {
		return nil, fmt.Errorf("no gohome recipients found in %s", rulesPath)
	}
	fields := strings.Fields(string(match[1]))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty recipient list in %s", rulesPath)
	}
	return fields, nil
}
