package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/healthlens/source"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healthlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, source.DefaultDatasetURL, cfg.DatasetURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
dataset_url: file:///data/oecd.csv
taxonomy_url: /data/columns.csv
http_timeout: 5s
listen_addr: 127.0.0.1:9000
log_format: text
`)
	t.Setenv("HEALTHLENS_LISTEN_ADDR", ":9100")
	t.Setenv("HEALTHLENS_HTTP_TIMEOUT", "2s")
	t.Setenv("HEALTHLENS_PRELOAD", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file:///data/oecd.csv", cfg.DatasetURL)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.Preload)

	ds, tax := cfg.Resources()
	assert.Equal(t, "dataset", ds.Name)
	assert.Equal(t, "/data/columns.csv", tax.Location)
}

func TestValidationErrors(t *testing.T) {
	path := writeConfig(t, "log_format: xml\nlisten_addr: nope\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogFormat")
	assert.Contains(t, err.Error(), "ListenAddr")

	t.Setenv("HEALTHLENS_HTTP_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "HTTP_TIMEOUT")
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
