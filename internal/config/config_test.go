package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend.local/")
	t.Setenv("AUTH_URL", "http://auth.local")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.local, http://b.local")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local", cfg.Backend.URL)
	assert.Equal(t, "key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Scan)
	assert.Equal(t, "disk", cfg.Images.Store)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	yml := `
server:
  port: 9090
backend:
  url: http://backend.local
analyzer: local
auth:
  url: http://auth.local
  jwt_secret: secret
images:
  store: none
timeouts:
  scan: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Analyzer)
	assert.Equal(t, "none", cfg.Images.Store)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Scan)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Analyzer: "gemini", Images: Images{Store: "s3"}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.url")
	assert.Contains(t, err.Error(), "gemini.api_key")
	assert.Contains(t, err.Error(), "s3.bucket")

	assert.NotContains(t, err.Error(), "auth.jwt_secret")

	cfg.Analyzer = "magic"
	assert.Error(t, cfg.Validate())
}
