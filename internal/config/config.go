package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Auth   AuthConfig   `mapstructure:"auth"`
	ERP    ERPConfig    `mapstructure:"erp"`
	Logger LoggerConfig `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig holds document store configuration. Driver is "sqlite" or
// "memory"; the memory driver is for local development and tests.
type StoreConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds token signing and role directory configuration
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminPhones   []string      `mapstructure:"admin_phones"`
	FinancePhones []string      `mapstructure:"finance_phones"`
}

// ERPConfig holds the upstream revenue feed configuration. Endpoint may be
// empty, in which case ERP revenue pulls are disabled.
type ERPConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Store defaults
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.path", "data/projfin.db")
	viper.SetDefault("store.max_open_conns", 25)
	viper.SetDefault("store.max_idle_conns", 5)
	viper.SetDefault("store.conn_max_lifetime", 5*time.Minute)

	// Auth defaults
	viper.SetDefault("auth.token_ttl", 12*time.Hour)

	// ERP defaults
	viper.SetDefault("erp.timeout", 30*time.Second)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("auth.jwt_secret", "PROJFIN_JWT_SECRET")
	viper.BindEnv("erp.endpoint", "ERP_REVENUE_ENDPOINT")
	viper.BindEnv("erp.token", "ERP_REVENUE_TOKEN")
	viper.BindEnv("store.path", "PROJFIN_DB_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store.Driver != "sqlite" && c.Store.Driver != "memory" {
		return fmt.Errorf("store.driver must be sqlite or memory, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the sqlite driver")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	return nil
}
