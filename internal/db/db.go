// Package db opens the database, migrates the schema and seeds demo data.
package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/diewo77/invoicing/internal/config"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var passwordRegex = regexp.MustCompile(`(password=)([^\s]+)`)

// Open connects with the configured driver. Postgres connections are retried
// to give the database time to start.
func Open(cfg config.DatabaseConfig, logg *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	attempts := 1
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		dsn := NormalizeDSN(cfg.DSN())
		if dsn == "" {
			return nil, errors.New("empty postgres DSN")
		}
		dialector = postgres.Open(dsn)
		attempts = 10
		logg.WithField("dsn", MaskDSN(dsn)).Info("connecting to database")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{
		Logger:         logger.New(logg, logger.Config{SlowThreshold: 200 * time.Millisecond, LogLevel: logLevel}),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		logg.WithError(err).Warnf("database connection attempt %d/%d failed", i+1, attempts)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	// Basic connectivity test
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	return db, nil
}

// Migrate creates or updates the invoicing tables.
func Migrate(db *gorm.DB) error {
	for _, m := range []any{&models.Client{}, &models.Invoice{}, &models.LineItem{}, &models.InvoiceSequence{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	for _, table := range []string{"clients", "invoices", "line_items", "invoice_sequences"} {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

var demoClients = []models.Client{
	{
		Name:          "Acme Corporation",
		ContactPerson: "Jane Doe",
		Email:         "billing@acme.example",
		Phone:         "+1 555 0100",
		Address:       "1 Industrial Way",
		City:          "Springfield",
		State:         "IL",
		PostalCode:    "62701",
		Country:       "USA",
	},
	{
		Name:    "Globex Ltd",
		Email:   "accounts@globex.example",
		City:    "London",
		Country: "United Kingdom",
	},
}

// Seed inserts demo clients that are not present yet. Safe to run repeatedly.
func Seed(db *gorm.DB) error {
	for _, c := range demoClients {
		c := c
		var existing models.Client
		err := db.Where("email = ?", strings.ToLower(c.Email)).Take(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("seed lookup %s: %w", c.Email, err)
		}
		if err := db.Create(&c).Error; err != nil {
			return fmt.Errorf("seed client %s: %w", c.Email, err)
		}
	}
	return nil
}
