package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesFixture = `let
  host = "age1host";
in
{
  "gohome-tado.age".publicKeys = [ host "age1admin" ];
}
`

func writeRules(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.nix"), []byte(rulesFixture), 0o644))
	return dir
}

func TestAgenixSecretName(t *testing.T) {
	assert.Equal(t, "gohome-purifier.age", AgenixSecretName("purifier"))
	assert.Equal(t, "gohome-purifier.age", AgenixSecretName("gohome-purifier.age"))
}

func TestEnsureRuleAddsEntryOnce(t *testing.T) {
	dir := writeRules(t)
	rules := filepath.Join(dir, "secrets.nix")

	recipients, err := gohomeRecipients(rules)
	require.NoError(t, err)
	assert.Equal(t, []string{"host", `"age1admin"`}, recipients)

	require.NoError(t, ensureRule(rules, "gohome-purifier.age", recipients))
	require.NoError(t, ensureRule(rules, "gohome-purifier.age", recipients))

	content, err := os.ReadFile(rules)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), `"gohome-purifier.age".publicKeys`))
	assert.Contains(t, string(content), `"gohome-purifier.age".publicKeys = [ host "age1admin" ];`)
}

func TestAgenixStoreWrite(t *testing.T) {
	dir := writeRules(t)
	store := AgenixStore{RepoPath: dir, Exec: "true"}

	path, err := store.Write(context.Background(), "purifier", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gohome-purifier.age"), path)

	_, err = store.Load(context.Background(), "purifier")
	assert.ErrorIs(t, err, ErrWriteOnly)
}

func TestAgenixStoreErrors(t *testing.T) {
	_, err := AgenixStore{}.Write(context.Background(), "purifier", nil)
	assert.Error(t, err)

	dir := writeRules(t)
	err = AgenixStore{RepoPath: dir, Exec: "false"}.Save(context.Background(), "purifier", nil)
	assert.ErrorContains(t, err, "agenix")
}
