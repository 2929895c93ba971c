package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAMLWithDefaults(t *testing.T) {
	path := writeFile(t, `
jwt:
  secret: yaml-secret
storage:
  driver: sqlite
  dsn: file:board.db
rate:
  login_limit: 3
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-secret", c.JWT.Secret)
	assert.Equal(t, "sqlite", c.Storage.Driver)
	assert.Equal(t, 3, c.Rate.LoginLimit)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 30*time.Minute, c.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, c.RefreshTTL())
	assert.Equal(t, 5*time.Second, Duration(c.Storage.LockTimeout))

	tc := c.Tokens()
	assert.Equal(t, []byte("yaml-secret"), tc.Secret)
	assert.Equal(t, "HS256", tc.Algorithm)

	p := c.PasswordPolicy()
	assert.Equal(t, 8, p.MinLength)
	assert.True(t, p.RequireDigit)
}

func TestEnvironmentWins(t *testing.T) {
	path := writeFile(t, "jwt:\n  secret: from-file\n  access_ttl_minutes: 5\n")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_ACCESS_TTL_MINUTES", "45")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("PASSWORD_REQUIRE_DIGIT", "false")
	t.Setenv("PASSWORD_MIN_LENGTH", "12")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWT.Secret)
	assert.Equal(t, 45*time.Minute, c.AccessTTL())
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, 12, c.Password.MinLength)
	assert.False(t, c.Password.RequireDigit)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "only-env")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file", c.Storage.Driver)
	assert.Equal(t, "./data", c.Storage.Dir)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeFile(t, "jwt: [unclosed"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := Default()
		c.JWT.Secret = "s"
		return c
	}
	require.NoError(t, base().Validate())

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"missing secret":  {func(c *Config) { c.JWT.Secret = "  " }, "jwt.secret"},
		"rsa algorithm":   {func(c *Config) { c.JWT.Algorithm = "RS256" }, "jwt.algorithm"},
		"negative ttl":    {func(c *Config) { c.JWT.AccessTTLMinutes = -1 }, "jwt.access_ttl_minutes"},
		"zero refresh":    {func(c *Config) { c.JWT.RefreshTTLDays = 0 }, "jwt.refresh_ttl_days"},
		"unknown driver":  {func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		"sql without dsn": {func(c *Config) { c.Storage.Driver = "postgres" }, "storage.dsn"},
		"bad hash":        {func(c *Config) { c.Password.Algorithm = "md5" }, "password.algorithm"},
		"max below min":   {func(c *Config) { c.Password.MaxLength = 4 }, "password.max_length"},
		"bad duration":    {func(c *Config) { c.Storage.LockTimeout = "soon" }, "storage.lock_timeout"},
		"zero window":     {func(c *Config) { c.Rate.Window = "0s" }, "rate.window"},
		"zero login":      {func(c *Config) { c.Rate.LoginLimit = 0 }, "rate.login_limit"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			assert.ErrorContains(t, c.Validate(), tc.want)
		})
	}
}
