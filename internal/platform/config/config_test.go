package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_FileAndEnv(t *testing.T) {
	p := writeYAML(t, `
mode: dev
database:
  host: db.internal
  port: 3307
  user: hcsc
  dbname: lending
auth:
  mode: credentials
  email: desk@hcsc.vn
  password: secret
lending:
  loan_days: 14
  overdue_sweep: 30m
`)
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("DB_PORT", "3310")

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 3310, cfg.DB.Port)
	assert.Equal(t, "from-env", cfg.DB.Password)
	assert.Equal(t, 14, cfg.Lending.LoanDays)
	assert.Equal(t, 30*time.Minute, cfg.Lending.OverdueSweep)
	// defaults survive
	assert.Equal(t, "enrollment-images", cfg.Storage.Bucket)
	assert.True(t, cfg.IsDev())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "stub")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "stub", cfg.Auth.Mode)
	assert.Equal(t, 30, cfg.Lending.LoanDays)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"stub ok", func(c *Config) { c.Auth.Mode = "stub" }, false},
		{"bad mode", func(c *Config) { c.Auth.Mode = "stub"; c.Mode = "prod" }, true},
		{"unknown auth", func(c *Config) { c.Auth.Mode = "oauth" }, true},
		{"credentials without password", func(c *Config) { c.Auth.Email = "a@b.c" }, true},
		{"credentials with hash", func(c *Config) { c.Auth.Email = "a@b.c"; c.Auth.PasswordHash = "$2a$..." }, false},
		{"release needs secrets", func(c *Config) { c.Auth.Mode = "stub"; c.Mode = "release" }, true},
		{"zero loan days", func(c *Config) { c.Auth.Mode = "stub"; c.Lending.LoanDays = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
