package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("RESTODASH_API_URL", "https://api.example.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 8, cfg.MaxConcurrency)
		assert.Equal(t, 5, cfg.ExportThreshold)
		assert.Equal(t, ":8080", cfg.ListenAddr)
		assert.Equal(t, "Factures", cfg.GoogleSheetWorksheet)
		assert.Equal(t, "stderr", cfg.GetLoggerConfig().Output)
	})

	t.Run("requires the API URL", func(t *testing.T) {
		t.Setenv("RESTODASH_API_URL", "")

		_, err := Load()
		assert.ErrorContains(t, err, "RESTODASH_API_URL is required")
	})

	t.Run("rejects relative API URL", func(t *testing.T) {
		t.Setenv("RESTODASH_API_URL", "/api")

		_, err := Load()
		assert.ErrorContains(t, err, "absolute URL")
	})

	t.Run("rejects non-positive concurrency", func(t *testing.T) {
		t.Setenv("RESTODASH_API_URL", "https://api.example.com")
		t.Setenv("RESTODASH_MAX_CONCURRENCY", "0")

		_, err := Load()
		assert.ErrorContains(t, err, "MAX_CONCURRENCY")
	})
}

func TestRequireEstablishment(t *testing.T) {
	cfg := &Config{EstablishmentID: "est-default"}

	id, err := cfg.RequireEstablishment("est-flag")
	require.NoError(t, err)
	assert.Equal(t, "est-flag", id)

	id, err = cfg.RequireEstablishment("")
	require.NoError(t, err)
	assert.Equal(t, "est-default", id)

	_, err = (&Config{}).RequireEstablishment("")
	assert.Error(t, err)
}
