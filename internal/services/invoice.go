package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/logging"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/diewo77/invoicing/internal/money"
	"github.com/diewo77/invoicing/internal/numbering"
	"github.com/diewo77/invoicing/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LineItemInput is a caller-supplied line. Totals are always derived.
type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CreateInvoiceInput describes a new invoice. Number is optional; when empty
// the next number of the configured prefix is assigned. Zero dates default to
// today and to InvoiceDate plus the configured number of due days.
type CreateInvoiceInput struct {
	Number      string
	ClientID    uint
	InvoiceDate time.Time
	DueDate     time.Time
	Items       []LineItemInput
	TaxRate     decimal.Decimal
	Status      models.PaymentStatus
	Notes       string
	Terms       string
}

// UpdateInvoiceInput carries a partial update. Nil fields are left untouched.
// Items set to a non-nil pointer replaces the whole list; an empty list clears it.
type UpdateInvoiceInput struct {
	ClientID    *uint
	InvoiceDate *time.Time
	DueDate     *time.Time
	Items       *[]LineItemInput
	TaxRate     *decimal.Decimal
	Status      *models.PaymentStatus
	Notes       *string
	Terms       *string
}

// InvoiceFilter narrows List. Zero values mean "no constraint".
type InvoiceFilter struct {
	ClientID  uint
	Status    models.PaymentStatus
	StartDate time.Time
	EndDate   time.Time
}

type InvoiceOptions struct {
	Prefix         string
	MaxAttempts    int
	DefaultDueDays int
}

// Summary is the dashboard view over all invoices.
type Summary struct {
	TotalClients    int              `json:"total_clients"`
	TotalInvoices   int              `json:"total_invoices"`
	PendingInvoices int              `json:"pending_invoices"`
	OverdueInvoices int              `json:"overdue_invoices"`
	Revenue         decimal.Decimal  `json:"revenue"`
	RecentInvoices  []models.Invoice `json:"recent_invoices"`
}

func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		Revenue money.Fixed `json:"revenue"`
	}{plain(s), money.Fixed(s.Revenue)})
}

const recentInvoices = 5

type InvoiceService struct {
	store store.Store
	seq   numbering.Sequencer
	opts  InvoiceOptions
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewInvoiceService(st store.Store, seq numbering.Sequencer, opts InvoiceOptions, log logrus.FieldLogger) *InvoiceService {
	if opts.Prefix == "" {
		opts.Prefix = numbering.DefaultPrefix
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.DefaultDueDays <= 0 {
		opts.DefaultDueDays = 30
	}
	if seq == nil {
		seq = numbering.StoreCounter{Store: st}
	}
	return &InvoiceService{
		store: st,
		seq:   seq,
		opts:  opts,
		log:   log.WithField("service", "invoice"),
		now:   time.Now,
	}
}

// WithClock overrides the time source used for default dates and overdue checks.
func (s *InvoiceService) WithClock(now func() time.Time) *InvoiceService {
	s.now = now
	return s
}

func toLineItems(in []LineItemInput) []models.LineItem {
	items := make([]models.LineItem, len(in))
	for i, it := range in {
		items[i] = models.LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return items
}

// Create validates and persists a new invoice. The client must exist; nothing
// is written otherwise.
func (s *InvoiceService) Create(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	if in.ClientID == 0 {
		return nil, apperr.Validation("client_id", "required")
	}
	client, err := s.store.FindClient(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		ClientID:    client.ID,
		InvoiceDate: models.Day(in.InvoiceDate),
		DueDate:     models.Day(in.DueDate),
		TaxRate:     in.TaxRate,
		Status:      in.Status,
		Notes:       in.Notes,
		Terms:       in.Terms,
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = models.Day(s.now())
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.InvoiceDate.AddDate(0, 0, s.opts.DefaultDueDays)
	}
	if inv.Status == "" {
		inv.Status = models.StatusPending
	}
	if err := inv.SetItems(toLineItems(in.Items)); err != nil {
		return nil, err
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	if number := strings.TrimSpace(in.Number); number != "" {
		inv.Number = number
		if err := s.store.CreateInvoice(ctx, inv); err != nil {
			return nil, err
		}
	} else if err := s.createNumbered(ctx, inv); err != nil {
		return nil, err
	}

	inv.Client = client
	s.log.WithFields(logrus.Fields{"invoice_id": inv.ID, "number": inv.Number, "total": inv.Total.StringFixed(2)}).Info("invoice created")
	return inv, nil
}

// createNumbered reserves a number and inserts, retrying when the number
// turns out to be taken.
func (s *InvoiceService) createNumbered(ctx context.Context, inv *models.Invoice) error {
	var last error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		seq, err := s.seq.Next(ctx, s.opts.Prefix)
		if err != nil {
			logging.LogError(s.log, "invoice", "Create", "reserve invoice number", s.opts.Prefix, err)
			return err
		}
		inv.Number = numbering.Format(s.opts.Prefix, seq)
		err = s.store.CreateInvoice(ctx, inv)
		if err == nil {
			return nil
		}
		if !apperr.IsConflict(err) {
			return err
		}
		last = err
		s.log.WithFields(logrus.Fields{"number": inv.Number, "attempt": attempt}).Debug("invoice number taken, retrying")
	}
	inv.Number = ""
	return &apperr.SequenceExhaustedError{Prefix: s.opts.Prefix, Attempts: s.opts.MaxAttempts, Last: last}
}

// Update applies a partial update and persists the recomputed aggregate.
func (s *InvoiceService) Update(ctx context.Context, id uint, in UpdateInvoiceInput) (*models.Invoice, error) {
	inv, err := s.store.FindInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.ClientID != nil && *in.ClientID != inv.ClientID {
		client, err := s.store.FindClient(ctx, *in.ClientID)
		if err != nil {
			return nil, err
		}
		inv.ClientID = client.ID
		inv.Client = client
	}
	if in.InvoiceDate != nil {
		inv.InvoiceDate = models.Day(*in.InvoiceDate)
	}
	if in.DueDate != nil {
		inv.DueDate = models.Day(*in.DueDate)
	}
	if in.TaxRate != nil {
		inv.TaxRate = *in.TaxRate
	}
	if in.Status != nil {
		inv.Status = *in.Status
	}
	if in.Notes != nil {
		inv.Notes = *in.Notes
	}
	if in.Terms != nil {
		inv.Terms = *in.Terms
	}
	replaceItems := in.Items != nil
	if replaceItems {
		if err := inv.SetItems(toLineItems(*in.Items)); err != nil {
			return nil, err
		}
	}
	inv.Recalculate()
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveInvoice(ctx, inv, replaceItems); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"invoice_id": inv.ID, "items_replaced": replaceItems}).Info("invoice updated")
	return inv, nil
}

// UpdateStatus moves an invoice to status. Every transition is allowed.
func (s *InvoiceService) UpdateStatus(ctx context.Context, id uint, status models.PaymentStatus) (*models.Invoice, error) {
	if !status.Valid() {
		return nil, apperr.Validation("status", "unknown_status")
	}
	if err := s.store.UpdateInvoiceStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"invoice_id": id, "status": status}).Info("invoice status changed")
	return s.store.FindInvoice(ctx, id)
}

func (s *InvoiceService) Delete(ctx context.Context, id uint) error {
	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		return err
	}
	s.log.WithField("invoice_id", id).Info("invoice deleted")
	return nil
}

func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	return s.store.FindInvoice(ctx, id)
}

func (s *InvoiceService) GetByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return s.store.FindInvoiceByNumber(ctx, strings.TrimSpace(number))
}

func (s *InvoiceService) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	_, err := s.GetByNumber(ctx, number)
	switch {
	case err == nil:
		return true, nil
	case apperr.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// List returns invoices matching f, newest invoice date first.
func (s *InvoiceService) List(ctx context.Context, f InvoiceFilter) ([]models.Invoice, error) {
	hasRange := !f.StartDate.IsZero() || !f.EndDate.IsZero()
	if hasRange {
		if f.StartDate.IsZero() || f.EndDate.IsZero() {
			return nil, apperr.Validation("date_range", "both_bounds_required")
		}
		if err := checkRange(f.StartDate, f.EndDate); err != nil {
			return nil, err
		}
	}

	var (
		out []models.Invoice
		err error
	)
	switch {
	case f.ClientID != 0 && f.Status != "":
		out, err = s.store.FindInvoicesByClientAndStatus(ctx, f.ClientID, f.Status)
	case f.ClientID != 0:
		out, err = s.store.FindInvoicesByClient(ctx, f.ClientID)
	case f.Status != "":
		out, err = s.store.FindInvoicesByStatus(ctx, f.Status)
	case hasRange:
		return s.store.FindInvoicesByDateRange(ctx, f.StartDate, f.EndDate)
	default:
		return s.store.ListInvoices(ctx)
	}
	if err != nil || !hasRange {
		return out, err
	}
	from, to := models.Day(f.StartDate), models.Day(f.EndDate)
	kept := out[:0]
	for _, inv := range out {
		if !inv.InvoiceDate.Before(from) && !inv.InvoiceDate.After(to) {
			kept = append(kept, inv)
		}
	}
	return kept, nil
}

func (s *InvoiceService) ListByClient(ctx context.Context, clientID uint) ([]models.Invoice, error) {
	return s.store.FindInvoicesByClient(ctx, clientID)
}

func (s *InvoiceService) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Invoice, error) {
	if !status.Valid() {
		return nil, apperr.Validation("status", "unknown_status")
	}
	return s.store.FindInvoicesByStatus(ctx, status)
}

func checkRange(start, end time.Time) error {
	if models.Day(end).Before(models.Day(start)) {
		return apperr.Validation("end_date", "before_start_date")
	}
	return nil
}

// ListByDateRange returns invoices dated within [start, end].
func (s *InvoiceService) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.Invoice, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	return s.store.FindInvoicesByDateRange(ctx, start, end)
}

// Overdue returns invoices that are overdue as of asOf: pending invoices past
// their due date plus those explicitly marked OVERDUE. Stored statuses are not changed.
func (s *InvoiceService) Overdue(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	due, err := s.store.FindInvoicesDueBefore(ctx, asOf)
	if err != nil {
		return nil, err
	}
	marked, err := s.store.FindInvoicesByStatus(ctx, models.StatusOverdue)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(due)+len(marked))
	out := make([]models.Invoice, 0, len(due)+len(marked))
	for _, inv := range append(due, marked...) {
		if seen[inv.ID] || !inv.IsOverdue(asOf) {
			continue
		}
		seen[inv.ID] = true
		out = append(out, inv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Revenue sums the totals of PAID invoices.
func (s *InvoiceService) Revenue(ctx context.Context) (decimal.Decimal, error) {
	paid, err := s.store.FindInvoicesByStatus(ctx, models.StatusPaid)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, inv := range paid {
		total = total.Add(inv.Total)
	}
	return total, nil
}

// Summary gathers the dashboard figures.
func (s *InvoiceService) Summary(ctx context.Context) (*Summary, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sum := &Summary{
		TotalClients:  len(clients),
		TotalInvoices: len(all),
		Revenue:       decimal.Zero,
	}
	for _, inv := range all {
		switch inv.Status {
		case models.StatusPending:
			sum.PendingInvoices++
		case models.StatusPaid:
			sum.Revenue = sum.Revenue.Add(inv.Total)
		}
		if inv.IsOverdue(now) {
			sum.OverdueInvoices++
		}
	}
	recent := append([]models.Invoice(nil), all...)
	sort.SliceStable(recent, func(i, j int) bool {
		if !recent[i].CreatedAt.Equal(recent[j].CreatedAt) {
			return recent[i].CreatedAt.After(recent[j].CreatedAt)
		}
		return recent[i].ID > recent[j].ID
	})
	if len(recent) > recentInvoices {
		recent = recent[:recentInvoices]
	}
	sum.RecentInvoices = recent
	return sum, nil
}
