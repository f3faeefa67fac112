package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, wantPath, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		assert.Equal(t, wantPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApplyVaultSecrets_KVv2(t *testing.T) {
	srv := vaultServer(t, "/v1/secret/data/medicheck",
		`{"data":{"data":{"HIRA_SERVICE_KEY":"abc","ADMIN_SYNC_KEY":"s3cret","SYNC_PAGE_SIZE":250}}}`)
	t.Setenv("HIRA_SERVICE_KEY", "")
	t.Setenv("ADMIN_SYNC_KEY", "already-set")
	t.Setenv("SYNC_PAGE_SIZE", "")

	res, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "root", Mount: "secret", Path: "medicheck", KVVersion: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"HIRA_SERVICE_KEY", "SYNC_PAGE_SIZE"}, res.Loaded)
	assert.Equal(t, []string{"ADMIN_SYNC_KEY"}, res.Skipped)
	assert.Equal(t, "abc", os.Getenv("HIRA_SERVICE_KEY"))
	assert.Equal(t, "250", os.Getenv("SYNC_PAGE_SIZE"))
	assert.Equal(t, "already-set", os.Getenv("ADMIN_SYNC_KEY"))
}

func TestApplyVaultSecrets_KVv1Overwrite(t *testing.T) {
	srv := vaultServer(t, "/v1/kv/medicheck", `{"data":{"ADMIN_SYNC_KEY":"rotated"}}`)
	t.Setenv("ADMIN_SYNC_KEY", "old")

	res, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "root", Mount: "kv", Path: "/medicheck/", KVVersion: 1, Overwrite: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN_SYNC_KEY"}, res.Loaded)
	assert.Equal(t, "rotated", os.Getenv("ADMIN_SYNC_KEY"))
}

func TestApplyVaultSecrets_Errors(t *testing.T) {
	res, err := ApplyVaultSecrets(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, res.Enabled)

	_, err = ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: true, Addr: "http://vault"})
	assert.ErrorContains(t, err, "incomplete")

	srv := vaultServer(t, "/v1/secret/data/medicheck", `{}`)
	_, err = ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "wrong", Mount: "secret", Path: "medicheck", KVVersion: 2,
	})
	assert.ErrorContains(t, err, "403")

	_, err = ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "root", Mount: "secret", Path: "medicheck", KVVersion: 2,
	})
	assert.ErrorContains(t, err, "missing data")
}

func TestLoadVaultConfigFromEnv(t *testing.T) {
	t.Setenv("VAULT_ENABLED", "TRUE")
	t.Setenv("VAULT_ADDR", "http://vault:8200")
	t.Setenv("VAULT_MOUNT", "")
	t.Setenv("VAULT_KV_VERSION", "1")
	t.Setenv("VAULT_TIMEOUT_MS", "250")

	cfg := LoadVaultConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "secret", cfg.Mount)
	assert.Equal(t, 1, cfg.KVVersion)
	assert.Equal(t, int64(250), cfg.Timeout.Milliseconds())
}
