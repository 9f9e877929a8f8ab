package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://127.0.0.1:8000", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Poll.AlertStatusInterval)
	assert.Equal(t, 60*time.Second, cfg.Poll.CancelWindow)
	assert.Equal(t, "@every 30s", cfg.Poll.AssignmentSchedule)
	assert.Equal(t, 10*time.Second, cfg.Poll.LocationMinInterval)
	assert.Equal(t, 15.0, cfg.Poll.LocationMinDistance)
	assert.Equal(t, 1500*time.Millisecond, cfg.Poll.SuccessFeedbackDelay)
	assert.Equal(t, 3, cfg.SMS.MaxRecipients)
	assert.Equal(t, "local", cfg.Cache.Type)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: production
api:
  base_url: https://api.liveguard.ng
  client_type: AGENCY
poll:
  assignment_schedule: "@every 10s"
`), 0o644))

	t.Setenv("LIVEGUARD_API_TIMEOUT", "5s")
	t.Setenv("LIVEGUARD_STORE_DRIVER", "pg")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Same(t, cfg, GlobalConfig)
	assert.Equal(t, "https://api.liveguard.ng", cfg.API.BaseURL)
	assert.Equal(t, "AGENCY", cfg.API.ClientType)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "pg", cfg.Store.Driver)
	assert.Equal(t, "@every 10s", cfg.Poll.AssignmentSchedule)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LIVEGUARD_STORE_BACKEND", "floppy")
	_, err := Load("")
	assert.ErrorContains(t, err, "store.backend")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
