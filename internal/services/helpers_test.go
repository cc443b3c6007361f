package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/invoicing/internal/config"
	"github.com/diewo77/invoicing/internal/db"
	"github.com/diewo77/invoicing/internal/logging"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/diewo77/invoicing/internal/numbering"
	"github.com/diewo77/invoicing/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newSQLiteStore(t *testing.T) *store.GormStore {
	t.Helper()
	gdb, err := db.Open(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared",
	}, logging.Discard())
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return store.NewGormStore(gdb)
}

func newService(st store.Store, seq numbering.Sequencer) *InvoiceService {
	return NewInvoiceService(st, seq, InvoiceOptions{}, logging.Discard()).
		WithClock(func() time.Time { return fixedNow })
}

func mustClient(t *testing.T, st store.Store, email string) *models.Client {
	t.Helper()
	c := &models.Client{Name: "Client " + email, Email: email}
	require.NoError(t, st.CreateClient(context.Background(), c))
	return c
}

func widgetInput(clientID uint) CreateInvoiceInput {
	return CreateInvoiceInput{
		ClientID: clientID,
		TaxRate:  dec("10"),
		Items: []LineItemInput{
			{Description: "Widget", Quantity: dec("2"), UnitPrice: dec("10.00")},
		},
	}
}
