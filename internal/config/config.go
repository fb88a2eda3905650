package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Logging  LoggingConfig  `json:"logging"`
	SMTP     SMTPConfig     `json:"smtp"`
	Monitor  MonitorConfig  `json:"monitor"`
	Alerting AlertingConfig `json:"alerting"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Sender   string `json:"sender"`
}

type MonitorConfig struct {
	SweepInterval string `json:"sweepInterval"` // e.g. "60s"
	StatusTimeout string `json:"statusTimeout"` // e.g. "90s"
	PruneInterval string `json:"pruneInterval"` // e.g. "1h"
	Retention     string `json:"retention"`     // e.g. "24h"
}

type AlertingConfig struct {
	SettingsFile       string `json:"settingsFile"`
	StatusDebounce     string `json:"statusDebounce"`     // e.g. "3h"
	DailyDebounce      string `json:"dailyDebounce"`      // e.g. "24h"
	DebouncePurgeAfter string `json:"debouncePurgeAfter"` // e.g. "48h"
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "fleetmon"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "fleetmon"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "debug"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			Sender:   getEnv("SMTP_SENDER", "noreply@proactivedb.com"),
		},
		Monitor: MonitorConfig{
			SweepInterval: getEnv("MONITOR_SWEEP_INTERVAL", "60s"),
			StatusTimeout: getEnv("MONITOR_STATUS_TIMEOUT", "90s"),
			PruneInterval: getEnv("MONITOR_PRUNE_INTERVAL", "1h"),
			Retention:     getEnv("MONITOR_RETENTION", "24h"),
		},
		Alerting: AlertingConfig{
			SettingsFile:       getEnv("ALERT_SETTINGS_FILE", "settings.yaml"),
			StatusDebounce:     getEnv("ALERT_STATUS_DEBOUNCE", "3h"),
			DailyDebounce:      getEnv("ALERT_DAILY_DEBOUNCE", "24h"),
			DebouncePurgeAfter: getEnv("ALERT_DEBOUNCE_PURGE_AFTER", "48h"),
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.Monitor.SweepInterval == "" {
		cfg.Monitor.SweepInterval = "60s"
	}
	if cfg.Monitor.StatusTimeout == "" {
		cfg.Monitor.StatusTimeout = "90s"
	}
	if cfg.Monitor.PruneInterval == "" {
		cfg.Monitor.PruneInterval = "1h"
	}
	if cfg.Monitor.Retention == "" {
		cfg.Monitor.Retention = "24h"
	}
	if cfg.Alerting.SettingsFile == "" {
		cfg.Alerting.SettingsFile = "settings.yaml"
	}
	if cfg.Alerting.StatusDebounce == "" {
		cfg.Alerting.StatusDebounce = "3h"
	}
	if cfg.Alerting.DailyDebounce == "" {
		cfg.Alerting.DailyDebounce = "24h"
	}
	if cfg.Alerting.DebouncePurgeAfter == "" {
		cfg.Alerting.DebouncePurgeAfter = "48h"
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

// ParseDuration parses s, falling back to d on empty or malformed input.
func ParseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
