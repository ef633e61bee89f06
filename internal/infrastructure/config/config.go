package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/reneee98/layers/pkg/storage"
)

const configFile = "config.yaml"

// Config is the workspace configuration. Values come from .layers/config.yaml
// and are overridden by LAYERS_* environment variables.
type Config struct {
	DBDriver  string `yaml:"db_driver" env:"LAYERS_DB_DRIVER" env-default:"sqlite"`
	DBDSN     string `yaml:"db_dsn" env:"LAYERS_DB_DSN"`
	LogLevel  string `yaml:"log_level" env:"LAYERS_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LAYERS_LOG_FORMAT" env-default:"text"`
	Currency  string `yaml:"currency" env:"LAYERS_CURRENCY" env-default:"EUR"`
	User      string `yaml:"user" env:"LAYERS_USER"`
}

// Path returns the config file location for a workspace root.
func Path(root string) string {
	return filepath.Join(root, storage.LayersDir, configFile)
}

// Load reads the workspace config. A missing file is not an error; the
// environment and defaults still apply.
func Load(root string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(Path(root), &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	}
	if err := cfg.normalize(root); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize(root string) error {
	switch c.DBDriver {
	case storage.DriverSQLite:
		if c.DBDSN == "" {
			c.DBDSN = storage.DefaultDSN(root)
		} else if !filepath.IsAbs(c.DBDSN) {
			c.DBDSN = filepath.Join(root, c.DBDSN)
		}
	case storage.DriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("LAYERS_DB_DSN is required for driver %q", c.DBDriver)
		}
	default:
		return fmt.Errorf("unsupported db driver %q (want %s or %s)", c.DBDriver, storage.DriverSQLite, storage.DriverPostgres)
	}
	if c.User == "" {
		c.User = os.Getenv("USER")
	}
	return nil
}

// Save writes cfg to the workspace config file.
func Save(root string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
