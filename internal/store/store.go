// Package store persists clients and invoices.
//
// Every invoice write runs as one unit: readers never see a half-replaced
// item list. Lookups of missing rows return *apperr.NotFoundError and unique
// violations return *apperr.ConflictError.
package store

import (
	"context"
	"time"

	"github.com/diewo77/invoicing/internal/models"
)

// InvoiceStore is durable keyed storage for invoice aggregates.
type InvoiceStore interface {
	// CreateInvoice inserts inv and its items. inv.Number must be set.
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	// SaveInvoice overwrites the invoice row. When replaceItems is true the
	// stored items are discarded and inv.Items inserted in their place.
	SaveInvoice(ctx context.Context, inv *models.Invoice, replaceItems bool) error
	FindInvoice(ctx context.Context, id uint) (*models.Invoice, error)
	FindInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error)
	ListInvoices(ctx context.Context) ([]models.Invoice, error)
	FindInvoicesByClient(ctx context.Context, clientID uint) ([]models.Invoice, error)
	FindInvoicesByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Invoice, error)
	FindInvoicesByClientAndStatus(ctx context.Context, clientID uint, status models.PaymentStatus) ([]models.Invoice, error)
	// FindInvoicesDueBefore returns invoices whose due date is strictly before date.
	FindInvoicesDueBefore(ctx context.Context, date time.Time) ([]models.Invoice, error)
	// FindInvoicesByDateRange returns invoices dated within [start, end], both inclusive.
	FindInvoicesByDateRange(ctx context.Context, start, end time.Time) ([]models.Invoice, error)
	MaxSequenceSuffix(ctx context.Context, prefix string) (int64, error)
	NextSequence(ctx context.Context, prefix string) (int64, error)
	UpdateInvoiceStatus(ctx context.Context, id uint, status models.PaymentStatus) error
	DeleteInvoice(ctx context.Context, id uint) error
	CountInvoicesByClient(ctx context.Context, clientID uint) (int64, error)
}

// ClientStore persists clients. Email is unique.
type ClientStore interface {
	CreateClient(ctx context.Context, c *models.Client) error
	SaveClient(ctx context.Context, c *models.Client) error
	FindClient(ctx context.Context, id uint) (*models.Client, error)
	FindClientByEmail(ctx context.Context, email string) (*models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	SearchClients(ctx context.Context, term string) ([]models.Client, error)
	// DeleteClient refuses with a ConflictError while invoices still reference the client.
	DeleteClient(ctx context.Context, id uint) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	InvoiceStore
	ClientStore
}
