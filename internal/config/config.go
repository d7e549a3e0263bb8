package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Token        string `yaml:"token"`
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`

	GeminiAPIKey  string        `yaml:"gemini_api_key"`
	GeminiModel   string        `yaml:"gemini_model"`
	NamingTimeout time.Duration `yaml:"naming_timeout"`

	GroupNameTemplate string        `yaml:"group_name_template"`
	SpinTicks         int           `yaml:"spin_ticks"`
	SpinInterval      time.Duration `yaml:"spin_interval"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
}

func Default() Config {
	return Config{
		DatabasePath:      "./data/hrtoolkit.db",
		LogLevel:          "info",
		GeminiModel:       "gemini-3-flash-preview",
		NamingTimeout:     15 * time.Second,
		GroupNameTemplate: "Group {n}",
		SpinTicks:         30,
		SpinInterval:      100 * time.Millisecond,
		MaxUploadBytes:    1 << 20,
	}
}

// FromEnv returns defaults overridden by the environment.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a YAML file over the defaults, then applies the environment.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.GeminiAPIKey, "API_KEY")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	setString(&c.GroupNameTemplate, "GROUP_NAME_TEMPLATE")

	if v := os.Getenv("SPIN_TICKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SPIN_TICKS %q: %w", v, err)
		}
		c.SpinTicks = n
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		c.MaxUploadBytes = n
	}
	if err := setDuration(&c.SpinInterval, "SPIN_INTERVAL"); err != nil {
		return err
	}
	return setDuration(&c.NamingTimeout, "NAMING_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// Validate checks the settings every command needs. The bot token is
// checked separately by the bot command.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database path is empty")
	}
	if c.SpinTicks < 0 {
		return fmt.Errorf("spin ticks must be >= 0, got %d", c.SpinTicks)
	}
	if c.SpinInterval <= 0 {
		return fmt.Errorf("spin interval must be positive, got %s", c.SpinInterval)
	}
	if c.NamingTimeout <= 0 {
		return fmt.Errorf("naming timeout must be positive, got %s", c.NamingTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if strings.TrimSpace(c.GroupNameTemplate) == "" {
		return errors.New("group name template is empty")
	}
	return nil
}
