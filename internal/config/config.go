// Package config loads the library's YAML configuration with environment
// overrides. A missing connection string or an unknown password format is a
// load-time error, not a first-use surprise.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshrizzo/MyLib/internal/membership"
)

// Config is the full file shape. Zero values fall back to the documented
// defaults in Load.
type Config struct {
	App struct {
		// dev | prod
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// Driver: fs | redis | postgres | memory
		Driver string `yaml:"driver"`
		// ConnectionString: fs root path, redis addr, or postgres DSN.
		ConnectionString string `yaml:"connection_string"`
		Redis            struct {
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	Membership struct {
		ApplicationName                      string `yaml:"application_name"`
		EnablePasswordReset                  *bool  `yaml:"enable_password_reset"`
		EnablePasswordRetrieval              bool   `yaml:"enable_password_retrieval"`
		RequiresQuestionAndAnswer            bool   `yaml:"requires_question_and_answer"`
		RequiresUniqueEmail                  *bool  `yaml:"requires_unique_email"`
		MaxInvalidPasswordAttempts           int    `yaml:"max_invalid_password_attempts"`
		PasswordAttemptWindowMinutes         int    `yaml:"password_attempt_window_minutes"`
		MinRequiredPasswordLength            int    `yaml:"min_required_password_length"`
		MinRequiredNonAlphanumericCharacters int    `yaml:"min_required_non_alphanumeric_characters"`
		PasswordStrengthRegularExpression    string `yaml:"password_strength_regular_expression"`
		NewPasswordLength                    int    `yaml:"new_password_length"`
		// PasswordFormat: hashed | encrypted | clear
		PasswordFormat string `yaml:"password_format"`
		// EncryptionKey backs the encrypted format (base64/hex, 32 bytes).
		EncryptionKey string `yaml:"encryption_key"`
		OnlineWindow  string `yaml:"online_window"`
	} `yaml:"membership"`

	JWT struct {
		Issuer    string `yaml:"issuer"`
		Secret    string `yaml:"secret"`
		AccessTTL string `yaml:"access_ttl"`
	} `yaml:"jwt"`
}

// Load reads path (optional when every value comes from env), applies
// MYLIB_* env overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Storage.Driver != "memory" && strings.TrimSpace(cfg.Storage.ConnectionString) == "" {
		return nil, fmt.Errorf("config: storage.connection_string is required for driver %q", cfg.Storage.Driver)
	}
	if _, err := membership.ParseFormat(cfg.Membership.PasswordFormat); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MYLIB_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("MYLIB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MYLIB_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MYLIB_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("MYLIB_CONNECTION_STRING"); v != "" {
		cfg.Storage.ConnectionString = v
	}
	if v := os.Getenv("MYLIB_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Redis.DB = db
		}
	}
	if v := os.Getenv("MYLIB_PASSWORD_FORMAT"); v != "" {
		cfg.Membership.PasswordFormat = v
	}
	if v := os.Getenv("MYLIB_ENCRYPTION_KEY"); v != "" {
		cfg.Membership.EncryptionKey = v
	}
	if v := os.Getenv("MYLIB_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Env == "" {
		cfg.App.Env = "dev"
	}
	if cfg.App.Name == "" {
		cfg.App.Name = "mylib"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	m := &cfg.Membership
	if m.MaxInvalidPasswordAttempts == 0 {
		m.MaxInvalidPasswordAttempts = 5
	}
	if m.PasswordAttemptWindowMinutes == 0 {
		m.PasswordAttemptWindowMinutes = 10
	}
	if m.MinRequiredPasswordLength == 0 {
		m.MinRequiredPasswordLength = 6
	}
	if m.NewPasswordLength == 0 {
		m.NewPasswordLength = 8
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = cfg.App.Name
	}
	if cfg.JWT.AccessTTL == "" {
		cfg.JWT.AccessTTL = "15m"
	}
}

// MembershipOptions converts the config block into provider policy.
func (c *Config) MembershipOptions() membership.Options {
	opts := membership.DefaultOptions()
	m := c.Membership
	opts.ApplicationName = m.ApplicationName
	if m.EnablePasswordReset != nil {
		opts.EnablePasswordReset = *m.EnablePasswordReset
	}
	opts.EnablePasswordRetrieval = m.EnablePasswordRetrieval
	opts.RequiresQuestionAndAnswer = m.RequiresQuestionAndAnswer
	if m.RequiresUniqueEmail != nil {
		opts.RequiresUniqueEmail = *m.RequiresUniqueEmail
	}
	opts.MaxInvalidPasswordAttempts = m.MaxInvalidPasswordAttempts
	opts.PasswordAttemptWindow = time.Duration(m.PasswordAttemptWindowMinutes) * time.Minute
	opts.MinRequiredPasswordLength = m.MinRequiredPasswordLength
	opts.MinRequiredNonAlphanumericCharacters = m.MinRequiredNonAlphanumericCharacters
	opts.PasswordStrengthRegularExpression = m.PasswordStrengthRegularExpression
	opts.NewPasswordLength = m.NewPasswordLength
	if d, err := time.ParseDuration(m.OnlineWindow); err == nil && d > 0 {
		opts.OnlineUserWindow = d
	}
	return opts
}

// PasswordFormat returns the parsed format. Load already validated it.
func (c *Config) PasswordFormat() membership.Format {
	f, _ := membership.ParseFormat(c.Membership.PasswordFormat)
	return f
}

// AccessTTL parses the JWT TTL, defaulting to 15 minutes.
func (c *Config) AccessTTL() time.Duration {
	if d, err := time.ParseDuration(c.JWT.AccessTTL); err == nil && d > 0 {
		return d
	}
	return 15 * time.Minute
}
