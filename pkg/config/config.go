package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Storage   StorageConfig  `mapstructure:"storage"`
	Runtime   RuntimeConfig  `mapstructure:"runtime"`
	Registry  RegistryConfig `mapstructure:"registry"`
	Health    PollConfig     `mapstructure:"health"`
	Bootstrap PollConfig     `mapstructure:"bootstrap"`
	Server    ServerConfig   `mapstructure:"server"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig holds the data root configuration
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// RuntimeConfig holds container engine configuration
type RuntimeConfig struct {
	Host            string   `mapstructure:"host"`
	MinVersion      string   `mapstructure:"min_version"`
	ActivateCommand []string `mapstructure:"activate_command"`
}

// RegistryConfig holds image registry configuration
type RegistryConfig struct {
	Mirror   string `mapstructure:"mirror"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// PollConfig is a fixed-interval retry budget
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Attempts int           `mapstructure:"attempts"`
}

// ServerConfig holds the local control API configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	dataDir := "./.devpods"
	if dir, err := GetConfigDir(); err == nil {
		dataDir = dir
	}

	return &Config{
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Runtime: RuntimeConfig{
			Host:            "",
			MinVersion:      "20.10.0",
			ActivateCommand: []string{"systemctl", "--user", "start", "docker.socket"},
		},
		Registry: RegistryConfig{
			Mirror: "mirror.gcr.io",
		},
		Health: PollConfig{
			Interval: 2 * time.Second,
			Attempts: 30,
		},
		Bootstrap: PollConfig{
			Interval: 2 * time.Second,
			Attempts: 30,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8780,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "cli",
		},
	}
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()
	v := viper.New()
	setDefaults(v, config)

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and home directory
		v.SetConfigName("devpods")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	// Environment variables, e.g. DEVPODS_STORAGE_DATA_DIR
	v.SetEnvPrefix("DEVPODS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config dosyası okunamadı: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("config parse edilemedi: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("config doğrulanamadı: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so that AutomaticEnv can override it
func setDefaults(v *viper.Viper, config *Config) {
	v.SetDefault("storage.data_dir", config.Storage.DataDir)
	v.SetDefault("runtime.host", config.Runtime.Host)
	v.SetDefault("runtime.min_version", config.Runtime.MinVersion)
	v.SetDefault("runtime.activate_command", config.Runtime.ActivateCommand)
	v.SetDefault("registry.mirror", config.Registry.Mirror)
	v.SetDefault("registry.username", config.Registry.Username)
	v.SetDefault("registry.password", config.Registry.Password)
	v.SetDefault("health.interval", config.Health.Interval)
	v.SetDefault("health.attempts", config.Health.Attempts)
	v.SetDefault("bootstrap.interval", config.Bootstrap.Interval)
	v.SetDefault("bootstrap.attempts", config.Bootstrap.Attempts)
	v.SetDefault("server.host", config.Server.Host)
	v.SetDefault("server.port", config.Server.Port)
	v.SetDefault("logging.level", config.Logging.Level)
	v.SetDefault("logging.format", config.Logging.Format)
}

// Validate validates configuration values
func Validate(config *Config) error {
	if config.Storage.DataDir == "" {
		return fmt.Errorf("data dizini boş olamaz")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("geçersiz log seviyesi: %s", config.Logging.Level)
	}

	validFormats := map[string]bool{
		"cli":  true,
		"json": true,
		"text": true,
	}

	if !validFormats[config.Logging.Format] {
		return fmt.Errorf("geçersiz log formatı: %s", config.Logging.Format)
	}

	for name, poll := range map[string]PollConfig{"health": config.Health, "bootstrap": config.Bootstrap} {
		if poll.Attempts < 1 {
			return fmt.Errorf("%s.attempts en az 1 olmalı: %d", name, poll.Attempts)
		}
		if poll.Interval < 0 {
			return fmt.Errorf("%s.interval negatif olamaz: %s", name, poll.Interval)
		}
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("geçersiz port numarası: %d (1-65535 arası olmalı)", config.Server.Port)
	}

	return nil
}

// GetConfigDir returns the per-user devpods directory. It is both the default
// data root and the last place searched for devpods.yaml.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".devpods"), nil
}
