package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
settings:
  days_back_default: 10
  timeout_seconds: 15
  retry_attempts: 4

series:
  - name: "Dólar comercial (compra)"
    code: 1
    unit: "R$/US$"
    category: "câmbio"
  - name: "Meta Selic"
    code: 432
    unit: "% a.a."
    source: "BCB"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Settings.DaysBackDefault)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.Equal(t, 4, cfg.Settings.RetryAttempts)

	specs := cfg.SeriesSpecs()
	require.Len(t, specs, 2)
	assert.Equal(t, 1, specs[0].Code)
	assert.Equal(t, "câmbio", specs[0].Category)
	assert.Equal(t, "Banco Central do Brasil (SGS)", specs[0].Source)
	assert.Equal(t, "BCB", specs[1].Source)
}

func TestLoad_DefaultsWhenSettingsAbsent(t *testing.T) {
	path := writeConfig(t, `
series:
  - name: "Dólar comercial (compra)"
    code: 1
    unit: "R$/US$"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 730, cfg.Settings.DaysBackDefault)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 2, cfg.Settings.RetryAttempts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsDuplicateCodes(t *testing.T) {
	path := writeConfig(t, `
series:
  - name: "Dólar comercial (compra)"
    code: 1
    unit: "R$/US$"
  - name: "Dólar comercial (venda)"
    code: 1
    unit: "R$/US$"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate series code 1")
}

func TestLoad_RejectsEmptySeriesList(t *testing.T) {
	path := writeConfig(t, `
settings:
  days_back_default: 10
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsInvalidCode(t *testing.T) {
	path := writeConfig(t, `
series:
  - name: "Dólar comercial (compra)"
    code: 0
    unit: "R$/US$"
`)

	_, err := Load(path)
	require.Error(t, err)
}
