// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Log      LogConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Company  CompanyConfig
	Invoice  InvoiceConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
	CORSOrigin   string
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver      string
	DSNOverride string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SQLitePath  string
	Debug       bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev  bool
	Seed bool
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string
	Format string // json | text
}

// RedisConfig enables the Redis-backed invoice counter and send locks when Address is set.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Address != "" }

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	MaxRetries int
	Timeout    time.Duration
}

// Addr returns host:port.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CompanyConfig is printed on PDFs and used to sign emails.
type CompanyConfig struct {
	Name    string
	Address string
	City    string
	Phone   string
	Email   string
}

// InvoiceConfig tunes invoice numbering and defaults.
type InvoiceConfig struct {
	Prefix         string
	MaxAttempts    int
	DefaultDueDays int
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	if d.DSNOverride != "" {
		return d.DSNOverride
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			CORSOrigin:   getEnv("CORS_ORIGIN", "http://localhost:4200"),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSNOverride: os.Getenv("DATABASE_DSN"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "invoices"),
			Password:    getEnv("DB_PASSWORD", "invoices123"),
			DBName:      getEnv("DB_NAME", "invoices"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SQLitePath:  getEnv("SQLITE_PATH", "invoices.db"),
			Debug:       getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:  getEnvBool("DEV", true),
			Seed: getEnvBool("DB_SEED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDRESS"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", "localhost"),
			Port:       getEnvInt("SMTP_PORT", 587),
			Username:   os.Getenv("SMTP_USERNAME"),
			Password:   os.Getenv("SMTP_PASSWORD"),
			From:       getEnv("SMTP_FROM", "billing@example.com"),
			MaxRetries: getEnvInt("SMTP_MAX_RETRIES", 3),
			Timeout:    time.Duration(getEnvInt("SMTP_TIMEOUT", 10)) * time.Second,
		},
		Company: CompanyConfig{
			Name:    getEnv("COMPANY_NAME", "Your Company Name"),
			Address: os.Getenv("COMPANY_ADDRESS"),
			City:    os.Getenv("COMPANY_CITY"),
			Phone:   os.Getenv("COMPANY_PHONE"),
			Email:   os.Getenv("COMPANY_EMAIL"),
		},
		Invoice: InvoiceConfig{
			Prefix:         getEnv("INVOICE_PREFIX", "INV-"),
			MaxAttempts:    getEnvInt("INVOICE_MAX_NUMBER_ATTEMPTS", 5),
			DefaultDueDays: getEnvInt("INVOICE_DEFAULT_DUE_DAYS", 30),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
