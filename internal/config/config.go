package config

import (
	"errors"
	"fmt"
	"os"

	"islatel/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Store      StoreConfig      `yaml:"store"`
	Journal    JournalConfig    `yaml:"journal"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
	Expiry     ExpiryConfig     `yaml:"expiry"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type StoreConfig struct {
	// Driver is "mongo" or "memory".
	Driver   string `yaml:"driver"`
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
	// PollInterval in seconds between replay passes.
	PollInterval int `yaml:"poll_interval"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AuthConfig struct {
	AdminPasscode string `yaml:"admin_passcode"`
	StaffPasscode string `yaml:"staff_passcode"`
	// RateLimitAttempts login attempts per window per client.
	RateLimitAttempts int `yaml:"rate_limit_attempts"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type ExpiryConfig struct {
	// SweepInterval in minutes between auto-cancellation passes.
	SweepInterval int `yaml:"sweep_interval"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Store.Driver != "mongo" && c.Store.Driver != "memory" {
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	if c.Store.Driver == "mongo" {
		if c.Store.URI == "" {
			return errors.New("store uri is required for the mongo driver")
		}
		if c.Store.Database == "" {
			return errors.New("store database is required for the mongo driver")
		}
	}

	if c.Auth.AdminPasscode == "" || c.Auth.StaffPasscode == "" {
		return errors.New("admin and staff passcodes are required")
	}
	if c.Auth.AdminPasscode == c.Auth.StaffPasscode {
		return errors.New("admin and staff passcodes must differ")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "islatel-crm"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "mongo"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/journal.db"
	}
	if c.Journal.PollInterval == 0 {
		c.Journal.PollInterval = 5
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Auth.RateLimitAttempts == 0 {
		c.Auth.RateLimitAttempts = models.LoginRateLimit
	}
	if c.Auth.RateLimitWindow == 0 {
		c.Auth.RateLimitWindow = models.LoginRateWindow
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Expiry.SweepInterval == 0 {
		c.Expiry.SweepInterval = 60
	}
}
