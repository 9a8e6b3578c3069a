package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMinDocs, cfg.KB.MinDocs)
	assert.True(t, cfg.Search.Prefix)
	assert.InDelta(t, 0.2, cfg.Search.Fuzziness, 1e-9)
	assert.Equal(t, 2.0, cfg.Search.FieldBoosts["title"])
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "kb:\n  dir: /srv/kb\n  minDocs: 10\nsearch:\n  fuzziness: 0.3\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("KB_MIN_DOCS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/kb", cfg.KB.Dir)
	assert.Equal(t, 3, cfg.KB.MinDocs)
	assert.InDelta(t, 0.3, cfg.Search.Fuzziness, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadMinDocs(t *testing.T) {
	t.Setenv("KB_MIN_DOCS", "-1")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KB_MIN_DOCS must be a non-negative number")

	t.Setenv("KB_MIN_DOCS", "lots")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestServerGuards(t *testing.T) {
	t.Setenv("KB_ADMIN_TOKEN", "s3cret")
	t.Setenv("KB_RATE_LIMIT", "0")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
	assert.Equal(t, 0, cfg.Server.RateLimit)

	cfg.Server.RateLimit = -5
	assert.Error(t, cfg.Validate())
}

func TestTrustedProxies(t *testing.T) {
	t.Setenv("KB_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)

	t.Setenv("KB_TRUSTED_PROXIES", "ingress")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.trustedProxies")
}
