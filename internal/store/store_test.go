package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/config"
	"github.com/diewo77/invoicing/internal/db"
	"github.com/diewo77/invoicing/internal/logging"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGormStore(t *testing.T) Store {
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
	return NewGormStore(gdb)
}

func newMemStore(*testing.T) Store { return NewMemStore() }

var backends = map[string]func(*testing.T) Store{
	"gorm":   newGormStore,
	"memory": newMemStore,
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) { fn(t, mk(t)) })
	}
}

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustClient(t *testing.T, s Store, email string) *models.Client {
	t.Helper()
	c := &models.Client{Name: "Client " + email, Email: email}
	require.NoError(t, s.CreateClient(context.Background(), c))
	return c
}

func newInvoice(clientID uint, number string, items ...models.LineItem) *models.Invoice {
	return &models.Invoice{
		Number:      number,
		ClientID:    clientID,
		InvoiceDate: day,
		DueDate:     day.AddDate(0, 0, 30),
		TaxRate:     d("10"),
		Status:      models.StatusPending,
		Items:       items,
	}
}

func widget(qty, price string) models.LineItem {
	return models.LineItem{Description: "Widget", Quantity: d(qty), UnitPrice: d(price)}
}

func TestCreateAndFindInvoice(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustClient(t, s, "a@example.com")
		inv := newInvoice(c.ID, "INV-0001", widget("2", "10.00"), widget("1", "5"))
		require.NoError(t, s.CreateInvoice(ctx, inv))
		require.NotZero(t, inv.ID)

		got, err := s.FindInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-0001", got.Number)
		require.Len(t, got.Items, 2)
		assert.Equal(t, inv.ID, got.Items[0].InvoiceID)
		assert.True(t, got.Items[0].Total.Equal(d("20")))
		assert.True(t, got.Subtotal.Equal(d("25")), "subtotal %s", got.Subtotal)
		assert.True(t, got.TaxAmount.Equal(d("2.5")), "tax %s", got.TaxAmount)
		assert.True(t, got.Total.Equal(d("27.5")), "total %s", got.Total)
		require.NotNil(t, got.Client)
		assert.Equal(t, "a@example.com", got.Client.Email)

		byNumber, err := s.FindInvoiceByNumber(ctx, "INV-0001")
		require.NoError(t, err)
		assert.Equal(t, inv.ID, byNumber.ID)

		_, err = s.FindInvoice(ctx, inv.ID+100)
		assert.True(t, apperr.IsNotFound(err))
		_, err = s.FindInvoiceByNumber(ctx, "INV-9999")
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestCreateInvoiceDuplicateNumber(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustClient(t, s, "a@example.com")
		require.NoError(t, s.CreateInvoice(ctx, newInvoice(c.ID, "INV-0001")))
		err := s.CreateInvoice(ctx, newInvoice(c.ID, "INV-0001", widget("1", "1")))
		require.True(t, apperr.IsConflict(err), "got %v", err)
		all, err := s.ListInvoices(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestSaveInvoiceReplacesItems(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustClient(t, s, "a@example.com")
		inv := newInvoice(c.ID, "INV-0001", widget("2", "10"), widget("3", "1"))
		require.NoError(t, s.CreateInvoice(ctx, inv))

		loaded, err := s.FindInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.SetItems([]models.LineItem{widget("1", "7.5")}))
		loaded.Number = "INV-HACKED"
		require.NoError(t, s.SaveInvoice(ctx, loaded, true))

		got, err := s.FindInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.True(t, got.Items[0].UnitPrice.Equal(d("7.5")))
		assert.True(t, got.Subtotal.Equal(d("7.5")))
		assert.Equal(t, "INV-0001", got.Number, "number must be immutable")

		require.NoError(t, got.SetItems(nil))
		require.NoError(t, s.SaveInvoice(ctx, got, true))
		cleared, err := s.FindInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Empty(t, cleared.Items)
		assert.True(t, cleared.Subtotal.IsZero())
		assert.True(t, cleared.Total.IsZero())
	})
}

func TestSaveInvoiceKeepsItemsWhenNotReplacing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustClient(t, s, "a@example.com")
		inv := newInvoice(c.ID, "INV-0001", widget("2", "10"))
		require.NoError(t, s.CreateInvoice(ctx, inv))

		loaded, err := s.FindInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.SetTaxRate(d("20")))
		loaded.Notes = "thanks"
		require.NoError(t, s.SaveInvoice(ctx, loaded, false))

		got, err := s.FindInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "thanks", got.Notes)
		assert.True(t, got.Total.Equal(d("24")), "total %s", got.Total)

		missing := newInvoice(c.ID, "INV-0404")
		missing.ID = 404
		assert.True(t, apperr.IsNotFound(s.SaveInvoice(ctx, missing, true)))
	})
}

func TestInvoiceQueries(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustClient(t, s, "a@example.com")
		b := mustClient(t, s, "b@example.com")

		first := newInvoice(a.ID, "INV-0001")
		second := newInvoice(a.ID, "INV-0002")
		second.InvoiceDate = day.AddDate(0, 1, 0)
		second.DueDate = day.AddDate(0, 2, 0)
		second.Status = models.StatusPaid
		third := newInvoice(b.ID, "INV-0003")
		third.InvoiceDate = day.AddDate(0, 2, 0)
		third.DueDate = day.AddDate(0, 2, 0)
		for _, inv := range []*models.Invoice{first, second, third} {
			require.NoError(t, s.CreateInvoice(ctx, inv))
		}

		byClient, err := s.FindInvoicesByClient(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, byClient, 2)

		paid, err := s.FindInvoicesByStatus(ctx, models.StatusPaid)
		require.NoError(t, err)
		require.Len(t, paid, 1)
		assert.Equal(t, "INV-0002", paid[0].Number)

		pendingA, err := s.FindInvoicesByClientAndStatus(ctx, a.ID, models.StatusPending)
		require.NoError(t, err)
		require.Len(t, pendingA, 1)
		assert.Equal(t, "INV-0001", pendingA[0].Number)

		due, err := s.FindInvoicesDueBefore(ctx, day.AddDate(0, 2, 0))
		require.NoError(t, err)
		require.Len(t, due, 1, "due date equal to the bound is excluded")
		assert.Equal(t, "INV-0001", due[0].Number)

		inRange, err := s.FindInvoicesByDateRange(ctx, day, day.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.Len(t, inRange, 2, "range bounds are inclusive")

		all, err := s.ListInvoices(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "INV-0003", all[0].Number, "newest invoice date first")

		n, err := s.CountInvoicesByClient(ctx, a.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})
}

func TestUpdateStatusAndDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustClient(t, s, "a@example.com")
		inv := newInvoice(c.ID, "INV-0001", widget("1", "10"))
		require.NoError(t, s.CreateInvoice(ctx, inv))

		require.NoError(t, s.UpdateInvoiceStatus(ctx, inv.ID, models.StatusPaid))
		got, err := s.FindInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaid, got.Status)
		assert.True(t, got.Total.Equal(d("11")), "status update must not touch totals")

		assert.True(t, apperr.IsNotFound(s.UpdateInvoiceStatus(ctx, 999, models.StatusPaid)))

		require.NoError(t, s.DeleteInvoice(ctx, inv.ID))
		_, err = s.FindInvoice(ctx, inv.ID)
		assert.True(t, apperr.IsNotFound(err))
		assert.True(t, apperr.IsNotFound(s.DeleteInvoice(ctx, inv.ID)))
	})
}

func TestDeleteInvoiceCascadesItems(t *testing.T) {
	s := newGormStore(t).(*GormStore)
	ctx := context.Background()
	c := mustClient(t, s, "a@example.com")
	inv := newInvoice(c.ID, "INV-0001", widget("1", "10"), widget("2", "3"))
	require.NoError(t, s.CreateInvoice(ctx, inv))
	require.NoError(t, s.DeleteInvoice(ctx, inv.ID))
	var n int64
	require.NoError(t, s.db.Model(&models.LineItem{}).Where("invoice_id = ?", inv.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSequences(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		max, err := s.MaxSequenceSuffix(ctx, "INV-")
		require.NoError(t, err)
		assert.Zero(t, max)

		next, err := s.NextSequence(ctx, "INV-")
		require.NoError(t, err)
		assert.EqualValues(t, 1, next)
		next, err = s.NextSequence(ctx, "INV-")
		require.NoError(t, err)
		assert.EqualValues(t, 2, next)

		c := mustClient(t, s, "a@example.com")
		require.NoError(t, s.CreateInvoice(ctx, newInvoice(c.ID, "INV-0041")))
		require.NoError(t, s.CreateInvoice(ctx, newInvoice(c.ID, "CUSTOM-7")))
		max, err = s.MaxSequenceSuffix(ctx, "INV-")
		require.NoError(t, err)
		assert.EqualValues(t, 41, max)

		next, err = s.NextSequence(ctx, "INV-")
		require.NoError(t, err)
		assert.EqualValues(t, 42, next, "counter catches up with stored numbers")

		other, err := s.NextSequence(ctx, "QUO-")
		require.NoError(t, err)
		assert.EqualValues(t, 1, other)
	})
}

func TestClients(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustClient(t, s, "alice@example.com")
		b := &models.Client{Name: "Bob Builder", Email: "bob@example.com"}
		require.NoError(t, s.CreateClient(ctx, b))

		dup := &models.Client{Name: "Alice again", Email: "alice@example.com"}
		assert.True(t, apperr.IsConflict(s.CreateClient(ctx, dup)))

		got, err := s.FindClientByEmail(ctx, "BOB@example.com")
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)

		found, err := s.SearchClients(ctx, "build")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, b.ID, found[0].ID)

		b.Email = "alice@example.com"
		assert.True(t, apperr.IsConflict(s.SaveClient(ctx, b)))
		b.Email = "robert@example.com"
		require.NoError(t, s.SaveClient(ctx, b))
		got, err = s.FindClient(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "robert@example.com", got.Email)

		list, err := s.ListClients(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		require.NoError(t, s.CreateInvoice(ctx, newInvoice(a.ID, "INV-0001")))
		err = s.DeleteClient(ctx, a.ID)
		assert.True(t, apperr.IsConflict(err), "client with invoices must not be deleted: %v", err)

		require.NoError(t, s.DeleteClient(ctx, b.ID))
		_, err = s.FindClient(ctx, b.ID)
		assert.True(t, apperr.IsNotFound(err))
		assert.True(t, apperr.IsNotFound(s.DeleteClient(ctx, b.ID)))
	})
}
