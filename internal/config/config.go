package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the engine configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Printer  PrinterConfig  `mapstructure:"printer"`
	Registry RegistryConfig `mapstructure:"registry"`
	Paper    PaperConfig    `mapstructure:"paper"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	Headless       bool          `mapstructure:"headless"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrinterConfig represents transport and queue settings
type PrinterConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	QueueSize       int           `mapstructure:"queue_size"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	StatusPolling   bool          `mapstructure:"status_polling"`
	SerialBaud      int           `mapstructure:"serial_baud"`
	SerialTimeout   time.Duration `mapstructure:"serial_timeout"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// RegistryConfig represents printer ID persistence
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// PaperConfig represents default output settings
type PaperConfig struct {
	Width    string `mapstructure:"width"`
	CodePage string `mapstructure:"code_page"`
}

// Load reads config.yaml from the working directory or ./config when present,
// then applies RECEIPT_ENGINE_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("RECEIPT_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "12212")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.headless", false)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Printer
	v.SetDefault("printer.max_retries", 3)
	v.SetDefault("printer.retry_delay", "2s")
	v.SetDefault("printer.queue_size", 100)
	v.SetDefault("printer.monitor_interval", "2s")
	v.SetDefault("printer.status_polling", true)
	v.SetDefault("printer.serial_baud", 9600)
	v.SetDefault("printer.serial_timeout", "1s")
	v.SetDefault("printer.dial_timeout", "5s")
	v.SetDefault("printer.write_timeout", "10s")

	// Registry
	// empty places the registry next to the executable
	v.SetDefault("registry.path", "")

	// Paper
	v.SetDefault("paper.width", "80mm")
	v.SetDefault("paper.code_page", "")
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Logging.Format)
	}

	switch cfg.Paper.Width {
	case "58mm", "80mm", "112mm":
	default:
		return fmt.Errorf("invalid paper width: %s", cfg.Paper.Width)
	}

	if cfg.Printer.MaxRetries < 0 {
		return fmt.Errorf("printer max_retries must not be negative")
	}
	if cfg.Printer.QueueSize <= 0 {
		return fmt.Errorf("printer queue_size must be positive")
	}
	if cfg.Printer.SerialBaud <= 0 {
		return fmt.Errorf("printer serial_baud must be positive")
	}
	if cfg.Printer.MonitorInterval <= 0 {
		return fmt.Errorf("printer monitor_interval must be positive")
	}

	return nil
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}
