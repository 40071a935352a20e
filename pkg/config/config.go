package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	// Database Configurations
	DBHost     string `mapstructure:"DB_HOST"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBPort     string `mapstructure:"DB_PORT"`

	// Server Configurations
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	// Session Configurations
	ConnectTimeoutSeconds int `mapstructure:"SESSION_CONNECT_TIMEOUT_SECONDS"`
	CommandTimeoutSeconds int `mapstructure:"COMMAND_TIMEOUT_SECONDS"`

	// Fleet Configurations
	FleetConcurrency        int      `mapstructure:"FLEET_CONCURRENCY"`
	PassDeadlineSeconds     int      `mapstructure:"FLEET_PASS_DEADLINE_SECONDS"`
	FleetCommands           []string `mapstructure:"FLEET_COMMANDS"`
	SchedulerIntervalSecond int      `mapstructure:"SCHEDULER_INTERVAL_SECONDS"`

	// Broadcaster Configurations
	BroadcastBufferSize int `mapstructure:"BROADCAST_BUFFER_SIZE"`

	// Health Configurations
	FailureWindowMinutes int `mapstructure:"HEALTH_FAILURE_WINDOW_MINUTES"`
	FailureThreshold     int `mapstructure:"HEALTH_FAILURE_THRESHOLD"`

	// Alert Configurations
	AlertOnCommandFailure bool `mapstructure:"ALERT_ON_COMMAND_FAILURE"`

	// Security/Encryption Configurations
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	EncryptionKey string `mapstructure:"NETMON_SECRET"`
	AdminUser     string `mapstructure:"NETMON_ADMIN_USER"`
	AdminHash     string `mapstructure:"NETMON_ADMIN_HASH"`

	// Authentication
	SessionDurationHours int `mapstructure:"SESSION_DURATION_HOURS"`

	// Result Query Defaults
	ResultsDefaultLimit int `mapstructure:"RESULTS_DEFAULT_LIMIT"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "netmon")
	v.SetDefault("DB_PASSWORD", "netmon")
	v.SetDefault("DB_NAME", "netmon")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("SESSION_CONNECT_TIMEOUT_SECONDS", 10)
	v.SetDefault("COMMAND_TIMEOUT_SECONDS", 30)
	v.SetDefault("FLEET_CONCURRENCY", 10)
	v.SetDefault("FLEET_PASS_DEADLINE_SECONDS", 120)
	v.SetDefault("FLEET_COMMANDS", []string{"show version"})
	v.SetDefault("SCHEDULER_INTERVAL_SECONDS", 60)
	v.SetDefault("BROADCAST_BUFFER_SIZE", 64)
	v.SetDefault("HEALTH_FAILURE_WINDOW_MINUTES", 10)
	v.SetDefault("HEALTH_FAILURE_THRESHOLD", 3)
	v.SetDefault("ALERT_ON_COMMAND_FAILURE", true)
	v.SetDefault("JWT_SECRET", "default-insecure-secret-change-me")
	v.SetDefault("NETMON_SECRET", "1234567890123456789012345678901212345678901234567890123456789012")
	v.SetDefault("NETMON_ADMIN_USER", "admin")
	v.SetDefault("NETMON_ADMIN_HASH", "$2a$10$BST/uOdLLXUyqO4fN.b9cuwVwoXEJWWFzpc4iirHiu3GcgbuJqtdu")
	v.SetDefault("SESSION_DURATION_HOURS", 24)
	v.SetDefault("RESULTS_DEFAULT_LIMIT", 100)

	// 2. Read app.yaml if exists
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// 3. Read .env if exists (overriding app.yaml)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Ignore if .env is missing
		}
	}

	// 4. Allow Viper to read Environment Variables (highest priority)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
