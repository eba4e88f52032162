package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Fetch.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Deadline)
	assert.Equal(t, 100, cfg.Fetch.PageSize)
	assert.True(t, cfg.Reliability.CircuitBreaker)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := New()
	cfg.Fetch.Concurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.Fetch.Deadline = 0
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.Reliability.RateLimitPerSec = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("GALLERY_TEST_SECRET", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
fetch:
  concurrency: 4
  deadline: 10s
apps:
  github:
    client_id: abc
    client_secret: ${GALLERY_TEST_SECRET}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg := New()
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Deadline)
	assert.Equal(t, "s3cret", cfg.App("github").ClientSecret)
	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Request)
}

func TestLoadMissingFile(t *testing.T) {
	cfg := New()
	assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.yaml"), cfg))
}

func TestUnsetEnvBecomesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "apps:\n  jira:\n    client_id: ${GALLERY_DEFINITELY_UNSET}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg := New()
	require.NoError(t, Load(path, cfg))
	assert.Equal(t, "", cfg.App("jira").ClientID)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := New()
	cfg.Fetch.Concurrency = 7
	require.NoError(t, Save(path, cfg))

	loaded := New()
	require.NoError(t, Load(path, loaded))
	assert.Equal(t, 7, loaded.Fetch.Concurrency)
}
