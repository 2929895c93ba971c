// Package config loads the static settings read once at process start.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"board/internal/auth"
)

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// file | memory | sqlite | postgres
		Driver string `yaml:"driver"`
		// Dir holds the collection units for the file driver.
		Dir         string `yaml:"dir"`
		DSN         string `yaml:"dsn"`
		LockTimeout string `yaml:"lock_timeout"`
		StaleLock   string `yaml:"stale_lock"`
	} `yaml:"storage"`

	JWT struct {
		Secret           string `yaml:"secret"`
		Algorithm        string `yaml:"algorithm"`
		AccessTTLMinutes int    `yaml:"access_ttl_minutes"`
		RefreshTTLDays   int    `yaml:"refresh_ttl_days"`
	} `yaml:"jwt"`

	Password struct {
		Algorithm     string `yaml:"algorithm"`
		BcryptCost    int    `yaml:"bcrypt_cost"`
		MinLength     int    `yaml:"min_length"`
		MaxLength     int    `yaml:"max_length"`
		RequireLetter bool   `yaml:"require_letter"`
		RequireDigit  bool   `yaml:"require_digit"`
	} `yaml:"password"`

	Rate struct {
		LoginLimit int    `yaml:"login_limit"`
		Window     string `yaml:"window"`
		RedisAddr  string `yaml:"redis_addr"`
		RedisDB    int    `yaml:"redis_db"`
	} `yaml:"rate"`
}

// Default returns a development configuration. The JWT secret is left empty
// and must be supplied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data"
	}
	if c.Storage.LockTimeout == "" {
		c.Storage.LockTimeout = "5s"
	}
	if c.Storage.StaleLock == "" {
		c.Storage.StaleLock = "2m"
	}
	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = "HS256"
	}
	if c.JWT.AccessTTLMinutes == 0 {
		c.JWT.AccessTTLMinutes = 30
	}
	if c.JWT.RefreshTTLDays == 0 {
		c.JWT.RefreshTTLDays = 7
	}
	if c.Password.Algorithm == "" {
		c.Password.Algorithm = "bcrypt"
	}
	if c.Password.MinLength == 0 {
		c.Password.MinLength = 8
		c.Password.RequireLetter = true
		c.Password.RequireDigit = true
	}
	if c.Password.MaxLength == 0 {
		c.Password.MaxLength = 72
	}
	if c.Rate.LoginLimit == 0 {
		c.Rate.LoginLimit = 10
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
}

// Load reads path (skipped when empty), then .env, then the environment.
// Environment values win.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	switch strings.ToUpper(c.JWT.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("config: jwt.algorithm %q is not an HMAC algorithm", c.JWT.Algorithm)
	}
	if c.JWT.AccessTTLMinutes <= 0 {
		return errors.New("config: jwt.access_ttl_minutes must be positive")
	}
	if c.JWT.RefreshTTLDays <= 0 {
		return errors.New("config: jwt.refresh_ttl_days must be positive")
	}
	switch c.Storage.Driver {
	case "file", "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: storage.dsn is required for driver %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("config: storage.driver %q is not one of file, memory, sqlite, postgres", c.Storage.Driver)
	}
	switch strings.ToLower(c.Password.Algorithm) {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("config: password.algorithm %q is not bcrypt or argon2id", c.Password.Algorithm)
	}
	if c.Password.MinLength < 1 {
		return errors.New("config: password.min_length must be at least 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("config: password.max_length must not be below min_length")
	}
	if c.Rate.LoginLimit < 1 {
		return errors.New("config: rate.login_limit must be at least 1")
	}
	for key, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"storage.lock_timeout":    c.Storage.LockTimeout,
		"storage.stale_lock":      c.Storage.StaleLock,
		"rate.window":             c.Rate.Window,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", key)
		}
	}
	return nil
}

// Duration parses a setting that Validate has already checked.
func Duration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWT.AccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWT.RefreshTTLDays) * 24 * time.Hour
}

func (c *Config) Tokens() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:     []byte(c.JWT.Secret),
		Algorithm:  strings.ToUpper(c.JWT.Algorithm),
		AccessTTL:  c.AccessTTL(),
		RefreshTTL: c.RefreshTTL(),
	}
}

func (c *Config) PasswordPolicy() auth.Policy {
	return auth.Policy{
		MinLength:     c.Password.MinLength,
		MaxLength:     c.Password.MaxLength,
		RequireLetter: c.Password.RequireLetter,
		RequireDigit:  c.Password.RequireDigit,
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DIR"); ok {
		c.Storage.Dir = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_LOCK_TIMEOUT"); ok {
		c.Storage.LockTimeout = v
	}

	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ALGORITHM"); ok {
		c.JWT.Algorithm = v
	}
	if v, ok := getEnvInt("JWT_ACCESS_TTL_MINUTES"); ok {
		c.JWT.AccessTTLMinutes = v
	}
	if v, ok := getEnvInt("JWT_REFRESH_TTL_DAYS"); ok {
		c.JWT.RefreshTTLDays = v
	}

	if v, ok := getEnvStr("PASSWORD_ALGORITHM"); ok {
		c.Password.Algorithm = v
	}
	if v, ok := getEnvInt("PASSWORD_BCRYPT_COST"); ok {
		c.Password.BcryptCost = v
	}
	if v, ok := getEnvInt("PASSWORD_MIN_LENGTH"); ok {
		c.Password.MinLength = v
	}
	if v, ok := getEnvBool("PASSWORD_REQUIRE_LETTER"); ok {
		c.Password.RequireLetter = v
	}
	if v, ok := getEnvBool("PASSWORD_REQUIRE_DIGIT"); ok {
		c.Password.RequireDigit = v
	}

	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.LoginLimit = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.RedisAddr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.RedisDB = v
	}
}
