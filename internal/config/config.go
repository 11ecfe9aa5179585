package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Service Service `yaml:"service" envconfig:"SERVICE"`
	Logging Logging `yaml:"logging" envconfig:"LOGGING"`
	Limits  Limits  `yaml:"limits" envconfig:"LIMITS"`
}

// Service contains the licensing service connection settings
type Service struct {
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://api.keycrate.dev" validate:"required,url"`
	AppID     string        `yaml:"app_id" envconfig:"APP_ID" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s" validate:"gt=0"`
	UserAgent string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"keygate/1.0"`
}

// Logging contains logging configuration
type Logging struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stderr" validate:"oneof=stderr file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/keygate.log"`
}

// Limits contains client-side throttling of authentication attempts
type Limits struct {
	AttemptsPerMinute float64 `yaml:"attempts_per_minute" envconfig:"ATTEMPTS_PER_MINUTE" default:"10" validate:"gt=0"`
	Burst             int     `yaml:"burst" envconfig:"BURST" default:"3" validate:"gt=0"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables win over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process("KEYGATE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

func (c *Config) validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
