package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CALENDAR_DATABASE_URL
const EnvPrefix = "CALENDAR"

const (
	defaultListenAddr   = ":8080"
	defaultHistoryLimit = 100
	defaultVisibleDays  = "FREQ=DAILY"
)

// Config represents the application configuration
type Config struct {
	DatabaseURL    string   `yaml:"databaseURL" split_words:"true" validate:"required"`
	ListenAddr     string   `yaml:"listenAddr,omitempty" split_words:"true"`
	AccessKey      string   `yaml:"accessKey,omitempty" split_words:"true"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" split_words:"true" validate:"dive,required"`
	HistoryLimit   int      `yaml:"historyLimit,omitempty" split_words:"true" validate:"min=1,max=100"`
	// VisibleDays is an RRULE selecting which days the calendar shows
	VisibleDays        string `yaml:"visibleDays,omitempty" split_words:"true" validate:"required"`
	ExternalCalendarID string `yaml:"externalCalendarID,omitempty" split_words:"true"`
	GmailSender        string `yaml:"gmailSender,omitempty" split_words:"true" validate:"omitempty,email"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads calendar_config.<env>.yaml, applies CALENDAR_* environment
// overrides and validates the result. The file is optional when the
// environment supplies everything required.
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findFile(configFileName(env))
	if err != nil {
		return load("")
	}
	return load(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Fields without a matching variable are left as the file set them
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.VisibleDays == "" {
		cfg.VisibleDays = defaultVisibleDays
	}
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := rrule.StrToRRule(cfg.VisibleDays); err != nil {
		return fmt.Errorf("invalid rrule in visibleDays: %w", err)
	}

	return nil
}

func configFileName(env string) string {
	if env == "" {
		return "calendar_config.yaml"
	}
	return "calendar_config." + env + ".yaml"
}

// findFile looks for name in the current directory, then the home directory
func findFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
