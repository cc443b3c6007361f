package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/diewo77/invoicing/internal/numbering"
)

// MemStore is an in-process Store. Values are deep-copied on the way in and
// out so callers never share item slices with the stored aggregate.
type MemStore struct {
	mu        sync.RWMutex
	invoices  map[uint]models.Invoice
	clients   map[uint]models.Client
	sequences map[string]int64
	nextInv   uint
	nextItem  uint
	nextCli   uint
	now       func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		invoices:  map[uint]models.Invoice{},
		clients:   map[uint]models.Client{},
		sequences: map[string]int64{},
		now:       time.Now,
	}
}

func copyInvoice(inv models.Invoice) models.Invoice {
	out := inv
	out.Items = append([]models.LineItem(nil), inv.Items...)
	if inv.Client != nil {
		c := *inv.Client
		out.Client = &c
	}
	return out
}

// view returns a copy of a stored invoice with its client attached. Caller holds mu.
func (m *MemStore) view(inv models.Invoice) models.Invoice {
	out := copyInvoice(inv)
	out.Client = nil
	if c, ok := m.clients[inv.ClientID]; ok {
		out.Client = &c
	}
	return out
}

func (m *MemStore) numberTaken(number string, except uint) bool {
	for id, inv := range m.invoices {
		if id != except && inv.Number == number {
			return true
		}
	}
	return false
}

func (m *MemStore) prepare(inv *models.Invoice) {
	if inv.Status == "" {
		inv.Status = models.StatusPending
	}
	inv.InvoiceDate = models.Day(inv.InvoiceDate)
	inv.DueDate = models.Day(inv.DueDate)
	for i := range inv.Items {
		m.nextItem++
		inv.Items[i].ID = m.nextItem
		inv.Items[i].InvoiceID = inv.ID
	}
	inv.Recalculate()
}

func (m *MemStore) CreateInvoice(_ context.Context, inv *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.numberTaken(inv.Number, 0) {
		return apperr.Conflict("invoice", "number", inv.Number)
	}
	if _, ok := m.clients[inv.ClientID]; !ok {
		return apperr.NotFound("client", inv.ClientID)
	}
	m.nextInv++
	inv.ID = m.nextInv
	now := m.now()
	inv.CreatedAt, inv.UpdatedAt = now, now
	m.prepare(inv)
	m.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (m *MemStore) SaveInvoice(_ context.Context, inv *models.Invoice, replaceItems bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.invoices[inv.ID]
	if !ok {
		return apperr.NotFound("invoice", inv.ID)
	}
	if _, ok := m.clients[inv.ClientID]; !ok {
		return apperr.NotFound("client", inv.ClientID)
	}
	inv.Number = old.Number
	inv.CreatedAt = old.CreatedAt
	inv.UpdatedAt = m.now()
	if replaceItems {
		m.prepare(inv)
	} else {
		inv.Items = append([]models.LineItem(nil), old.Items...)
		inv.Recalculate()
	}
	m.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (m *MemStore) FindInvoice(_ context.Context, id uint) (*models.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice", id)
	}
	out := m.view(inv)
	return &out, nil
}

func (m *MemStore) FindInvoiceByNumber(_ context.Context, number string) (*models.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invoices {
		if inv.Number == number {
			out := m.view(inv)
			return &out, nil
		}
	}
	return nil, apperr.NotFound("invoice", number)
}

func (m *MemStore) filter(keep func(models.Invoice) bool) []models.Invoice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Invoice, 0)
	for _, inv := range m.invoices {
		if keep(inv) {
			out = append(out, m.view(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InvoiceDate.Equal(out[j].InvoiceDate) {
			return out[i].InvoiceDate.After(out[j].InvoiceDate)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MemStore) ListInvoices(context.Context) ([]models.Invoice, error) {
	return m.filter(func(models.Invoice) bool { return true }), nil
}

func (m *MemStore) FindInvoicesByClient(_ context.Context, clientID uint) ([]models.Invoice, error) {
	return m.filter(func(inv models.Invoice) bool { return inv.ClientID == clientID }), nil
}

func (m *MemStore) FindInvoicesByStatus(_ context.Context, status models.PaymentStatus) ([]models.Invoice, error) {
	return m.filter(func(inv models.Invoice) bool { return inv.Status == status }), nil
}

func (m *MemStore) FindInvoicesByClientAndStatus(_ context.Context, clientID uint, status models.PaymentStatus) ([]models.Invoice, error) {
	return m.filter(func(inv models.Invoice) bool { return inv.ClientID == clientID && inv.Status == status }), nil
}

func (m *MemStore) FindInvoicesDueBefore(_ context.Context, date time.Time) ([]models.Invoice, error) {
	day := models.Day(date)
	return m.filter(func(inv models.Invoice) bool { return inv.DueDate.Before(day) }), nil
}

func (m *MemStore) FindInvoicesByDateRange(_ context.Context, start, end time.Time) ([]models.Invoice, error) {
	from, to := models.Day(start), models.Day(end)
	return m.filter(func(inv models.Invoice) bool {
		return !inv.InvoiceDate.Before(from) && !inv.InvoiceDate.After(to)
	}), nil
}

func (m *MemStore) maxSuffix(prefix string) int64 {
	var max int64
	for _, inv := range m.invoices {
		if seq, ok := numbering.ParseSuffix(prefix, inv.Number); ok && seq > max {
			max = seq
		}
	}
	return max
}

func (m *MemStore) MaxSequenceSuffix(_ context.Context, prefix string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxSuffix(prefix), nil
}

func (m *MemStore) NextSequence(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.sequences[prefix] + 1
	if max := m.maxSuffix(prefix); next <= max {
		next = max + 1
	}
	m.sequences[prefix] = next
	return next, nil
}

func (m *MemStore) UpdateInvoiceStatus(_ context.Context, id uint, status models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return apperr.NotFound("invoice", id)
	}
	inv.Status = status
	inv.UpdatedAt = m.now()
	m.invoices[id] = inv
	return nil
}

func (m *MemStore) DeleteInvoice(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[id]; !ok {
		return apperr.NotFound("invoice", id)
	}
	delete(m.invoices, id)
	return nil
}

func (m *MemStore) CountInvoicesByClient(_ context.Context, clientID uint) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, inv := range m.invoices {
		if inv.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) emailTaken(email string, except uint) bool {
	for id, c := range m.clients {
		if id != except && strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}

func (m *MemStore) CreateClient(_ context.Context, c *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(c.Email, 0) {
		return apperr.Conflict("client", "email", c.Email)
	}
	m.nextCli++
	c.ID = m.nextCli
	now := m.now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.clients[c.ID] = *c
	return nil
}

func (m *MemStore) SaveClient(_ context.Context, c *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.clients[c.ID]
	if !ok {
		return apperr.NotFound("client", c.ID)
	}
	if m.emailTaken(c.Email, c.ID) {
		return apperr.Conflict("client", "email", c.Email)
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = m.now()
	m.clients[c.ID] = *c
	return nil
}

func (m *MemStore) FindClient(_ context.Context, id uint) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, apperr.NotFound("client", id)
	}
	return &c, nil
}

func (m *MemStore) FindClientByEmail(_ context.Context, email string) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.TrimSpace(email)
	for _, c := range m.clients {
		if strings.EqualFold(c.Email, email) {
			return &c, nil
		}
	}
	return nil, apperr.NotFound("client", strings.ToLower(email))
}

func (m *MemStore) clientList(keep func(models.Client) bool) []models.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Client, 0, len(m.clients))
	for _, c := range m.clients {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemStore) ListClients(context.Context) ([]models.Client, error) {
	return m.clientList(func(models.Client) bool { return true }), nil
}

func (m *MemStore) SearchClients(_ context.Context, term string) ([]models.Client, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	return m.clientList(func(c models.Client) bool {
		return strings.Contains(strings.ToLower(c.Name), term) || strings.Contains(strings.ToLower(c.Email), term)
	}), nil
}

func (m *MemStore) DeleteClient(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return apperr.NotFound("client", id)
	}
	var refs int
	for _, inv := range m.invoices {
		if inv.ClientID == id {
			refs++
		}
	}
	if refs > 0 {
		return &apperr.ConflictError{Resource: "client", Field: "id", Value: id,
			Reason: fmt.Sprintf("referenced by %d invoice(s)", refs)}
	}
	delete(m.clients, id)
	return nil
}

var _ Store = (*MemStore)(nil)
var _ Store = (*GormStore)(nil)
