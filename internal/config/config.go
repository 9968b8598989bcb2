package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	Environment    string   `yaml:"environment"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	CookieName        string        `yaml:"cookie_name"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	PasswordMinLength int           `yaml:"password_min_length"`
	BcryptCost        int           `yaml:"bcrypt_cost"`
}

type StorageConfig struct {
	AssetRoot         string   `yaml:"asset_root"`
	UploadMaxBytes    int64    `yaml:"upload_max_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ATRIUM_ENV"); v != "" {
		c.Server.Environment = v
	}
	if v := os.Getenv("ATRIUM_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ATRIUM_ASSET_ROOT"); v != "" {
		c.Storage.AssetRoot = v
	}
	if v := os.Getenv("ATRIUM_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
}

func (c *Config) validate() error {
	switch c.Server.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("server.environment must be %q or %q", EnvDevelopment, EnvProduction)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.PasswordMinLength < 6 {
		return fmt.Errorf("auth.password_min_length must be at least 6")
	}
	if c.Storage.UploadMaxBytes <= 0 {
		return fmt.Errorf("storage.upload_max_bytes must be positive")
	}
	for _, ext := range c.Storage.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("storage.allowed_extensions entries must start with a dot, got %q", ext)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Environment == "" {
		c.Server.Environment = EnvDevelopment
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/atrium.db"
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "atrium_session"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}
	if c.Auth.PasswordMinLength == 0 {
		c.Auth.PasswordMinLength = 8
	}
	if c.Storage.AssetRoot == "" {
		c.Storage.AssetRoot = "./data/assets"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = 5 << 20 // 5 MiB
	}
	if len(c.Storage.AllowedExtensions) == 0 {
		c.Storage.AllowedExtensions = []string{".jpg", ".jpeg", ".png"}
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}
