package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/berniyo/paypack-portal/internal/paypack"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(EnvClientID, "id")
	t.Setenv(EnvClientSecret, "secret")
	t.Setenv(EnvSessionSecret, "session")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYPACK_BASE_URL", "")
	t.Setenv("ENV", "")

	cfg := Load()
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, paypack.DefaultBaseURL, cfg.PaypackBaseURL)
	require.Equal(t, "production", cfg.PaypackEnvironment)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 120*time.Second, cfg.Poll.SoftTimeout)
	require.Equal(t, 300*time.Second, cfg.Poll.HardStop)
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.IsProd())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("POLL_SOFT_TIMEOUT", "60")
	t.Setenv("HTTP_TIMEOUT", "bogus")

	cfg := Load()
	require.True(t, cfg.IsProd())
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 2*time.Second, cfg.Poll.Interval)
	require.Equal(t, time.Minute, cfg.Poll.SoftTimeout)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)

	pp := cfg.Paypack()
	require.Equal(t, "id", pp.ClientID)
	require.Equal(t, "secret", pp.ClientSecret)
}

func TestValidateNamesFirstMissingVariable(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvClientID, "")
	t.Setenv(EnvSessionSecret, "")

	cfg := Load()
	err := cfg.Validate()

	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, EnvClientID, missing.Name)
	require.EqualError(t, err, "Missing required environment variable: PAYPACK_CLIENT_ID")
	require.Equal(t, []string{EnvClientID, EnvSessionSecret}, cfg.Missing())
	require.False(t, cfg.PaymentsConfigured())
}

func TestValidateThresholds(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_SOFT_TIMEOUT", "10m")

	require.ErrorContains(t, Load().Validate(), "POLL_SOFT_TIMEOUT")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PAYPACK_TEST_ONLY=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PAYPACK_TEST_ONLY") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	require.Equal(t, "from-file", os.Getenv("PAYPACK_TEST_ONLY"))
}

func TestRequireProviderIgnoresSessionSecret(t *testing.T) {
	cfg := Config{PaypackClientID: "id", PaypackClientSecret: "secret"}
	require.NoError(t, cfg.RequireProvider())

	cfg.PaypackClientSecret = ""
	var missing *MissingError
	require.ErrorAs(t, cfg.RequireProvider(), &missing)
	require.Equal(t, EnvClientSecret, missing.Name)
}
