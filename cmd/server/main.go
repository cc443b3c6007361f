package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/diewo77/invoicing/internal/config"
	"github.com/diewo77/invoicing/internal/db"
	"github.com/diewo77/invoicing/internal/handlers"
	"github.com/diewo77/invoicing/internal/logging"
	"github.com/diewo77/invoicing/internal/notify"
	"github.com/diewo77/invoicing/internal/numbering"
	"github.com/diewo77/invoicing/internal/pdf"
	"github.com/diewo77/invoicing/internal/services"
	"github.com/diewo77/invoicing/internal/store"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	logg := logging.New(cfg.Log)

	dbConn, err := db.Open(cfg.Database, logg)
	if err != nil {
		logg.WithError(err).Fatal("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn); err != nil {
			logg.WithError(err).Fatal("migration failed")
		}
		logg.Info("migrations completed successfully")
		return
	}

	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			logg.WithError(err).Fatal("seeding failed")
		}
		logg.Info("seeding completed successfully")
		return
	}

	if err := db.Migrate(dbConn); err != nil {
		logg.WithError(err).Fatal("migration failed")
	}
	if cfg.App.Seed {
		if err := db.Seed(dbConn); err != nil {
			logg.WithError(err).Fatal("seeding failed")
		}
	}

	st := store.NewGormStore(dbConn)

	var (
		seq    numbering.Sequencer
		locker notify.Locker
	)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logg.WithError(err).Fatal("failed to connect to redis")
		}
		seq = numbering.RedisCounter{Client: rdb, Store: st}
		locker = notify.NewRedisLocker(redislock.New(rdb))
		logg.WithField("address", cfg.Redis.Address).Info("redis numbering and send locks enabled")
	}

	invoiceSvc := services.NewInvoiceService(st, seq, services.InvoiceOptions{
		Prefix:         cfg.Invoice.Prefix,
		MaxAttempts:    cfg.Invoice.MaxAttempts,
		DefaultDueDays: cfg.Invoice.DefaultDueDays,
	}, logg)
	clientSvc := services.NewClientService(st, logg)
	renderer := pdf.NewRenderer(cfg.Company)
	mailer := notify.NewSMTPMailer(cfg.SMTP, logg)
	notifier := services.NewNotificationService(st, renderer, mailer, locker, cfg.SMTP.From, cfg.Company.Name, logg)

	app := NewApp(
		handlers.NewClientHandler(clientSvc),
		handlers.NewInvoiceHandler(invoiceSvc, notifier, renderer, logg),
		handlers.Health(pingDB(dbConn)),
		cfg.Server.CORSOrigin,
		logg,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logg.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.WithError(err).Error("error during shutdown")
	}
	logg.Info("server stopped gracefully")
}

func pingDB(conn *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
