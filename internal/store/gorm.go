package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/diewo77/invoicing/internal/numbering"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of gorm (postgres in production, sqlite in tests).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key")
}

func isForeignKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

func (s *GormStore) invoices(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Order("invoice_date DESC, id DESC")
}

func insertItems(tx *gorm.DB, inv *models.Invoice) error {
	if len(inv.Items) == 0 {
		return nil
	}
	for i := range inv.Items {
		inv.Items[i].ID = 0
		inv.Items[i].InvoiceID = inv.ID
		inv.Items[i].Position = i
	}
	return tx.Create(&inv.Items).Error
}

func (s *GormStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(inv).Error; err != nil {
			return err
		}
		return insertItems(tx, inv)
	})
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		inv.ID = 0
		return apperr.Conflict("invoice", "number", inv.Number)
	case isForeignKey(err):
		inv.ID = 0
		return apperr.NotFound("client", inv.ClientID)
	default:
		inv.ID = 0
		return fmt.Errorf("create invoice: %w", err)
	}
}

func (s *GormStore) SaveInvoice(ctx context.Context, inv *models.Invoice, replaceItems bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("invoice", inv.ID)
		}
		if err := tx.Omit(clause.Associations, "CreatedAt", "Number").Save(inv).Error; err != nil {
			return err
		}
		if !replaceItems {
			return nil
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		return insertItems(tx, inv)
	})
	switch {
	case err == nil, apperr.IsNotFound(err):
		return err
	case isForeignKey(err):
		return apperr.NotFound("client", inv.ClientID)
	default:
		return fmt.Errorf("save invoice %d: %w", inv.ID, err)
	}
}

func (s *GormStore) findOne(ctx context.Context, key any, where string, args ...any) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.invoices(ctx).Where(where, args...).Take(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice", key)
		}
		return nil, fmt.Errorf("find invoice %v: %w", key, err)
	}
	return &inv, nil
}

func (s *GormStore) FindInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	return s.findOne(ctx, id, "invoices.id = ?", id)
}

func (s *GormStore) FindInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return s.findOne(ctx, number, "number = ?", number)
}

func (s *GormStore) findMany(ctx context.Context, query string, args ...any) ([]models.Invoice, error) {
	var out []models.Invoice
	q := s.invoices(ctx)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

func (s *GormStore) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	return s.findMany(ctx, "")
}

func (s *GormStore) FindInvoicesByClient(ctx context.Context, clientID uint) ([]models.Invoice, error) {
	return s.findMany(ctx, "client_id = ?", clientID)
}

func (s *GormStore) FindInvoicesByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Invoice, error) {
	return s.findMany(ctx, "status = ?", status)
}

func (s *GormStore) FindInvoicesByClientAndStatus(ctx context.Context, clientID uint, status models.PaymentStatus) ([]models.Invoice, error) {
	return s.findMany(ctx, "client_id = ? AND status = ?", clientID, status)
}

func (s *GormStore) FindInvoicesDueBefore(ctx context.Context, date time.Time) ([]models.Invoice, error) {
	return s.findMany(ctx, "due_date < ?", models.Day(date))
}

func (s *GormStore) FindInvoicesByDateRange(ctx context.Context, start, end time.Time) ([]models.Invoice, error) {
	return s.findMany(ctx, "invoice_date >= ? AND invoice_date <= ?", models.Day(start), models.Day(end))
}

func maxSuffix(tx *gorm.DB, prefix string) (int64, error) {
	var numbers []string
	if err := tx.Model(&models.Invoice{}).Where("number LIKE ?", prefix+"%").Pluck("number", &numbers).Error; err != nil {
		return 0, fmt.Errorf("scan invoice numbers: %w", err)
	}
	var max int64
	for _, n := range numbers {
		if seq, ok := numbering.ParseSuffix(prefix, n); ok && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (s *GormStore) MaxSequenceSuffix(ctx context.Context, prefix string) (int64, error) {
	return maxSuffix(s.db.WithContext(ctx), prefix)
}

// NextSequence bumps the per-prefix counter row inside one transaction. The
// row-level write lock serializes concurrent callers. The counter is lifted
// above any number already stored, which covers rows imported or numbered by hand.
func (s *GormStore) NextSequence(ctx context.Context, prefix string) (int64, error) {
	var next int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.InvoiceSequence{Prefix: prefix}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.InvoiceSequence{}).Where("prefix = ?", prefix).
			UpdateColumn("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
			return err
		}
		var seq models.InvoiceSequence
		if err := tx.Where("prefix = ?", prefix).Take(&seq).Error; err != nil {
			return err
		}
		max, err := maxSuffix(tx, prefix)
		if err != nil {
			return err
		}
		if seq.LastValue <= max {
			seq.LastValue = max + 1
			if err := tx.Model(&models.InvoiceSequence{}).Where("prefix = ?", prefix).
				UpdateColumn("last_value", seq.LastValue).Error; err != nil {
				return err
			}
		}
		next = seq.LastValue
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("next sequence for %q: %w", prefix, err)
	}
	return next, nil
}

func (s *GormStore) UpdateInvoiceStatus(ctx context.Context, id uint, status models.PaymentStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("update invoice %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("invoice", id)
	}
	return nil
}

func (s *GormStore) DeleteInvoice(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Invoice{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("invoice", id)
		}
		return tx.Where("invoice_id = ?", id).Delete(&models.LineItem{}).Error
	})
	if err != nil && !apperr.IsNotFound(err) {
		return fmt.Errorf("delete invoice %d: %w", id, err)
	}
	return err
}

func (s *GormStore) CountInvoicesByClient(ctx context.Context, clientID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("client_id = ?", clientID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count invoices for client %d: %w", clientID, err)
	}
	return n, nil
}

func (s *GormStore) CreateClient(ctx context.Context, c *models.Client) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		c.ID = 0
		if isDuplicate(err) {
			return apperr.Conflict("client", "email", c.Email)
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (s *GormStore) SaveClient(ctx context.Context, c *models.Client) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Client{}).Where("id = ?", c.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("client", c.ID)
		}
		return tx.Omit("CreatedAt").Save(c).Error
	})
	switch {
	case err == nil, apperr.IsNotFound(err):
		return err
	case isDuplicate(err):
		return apperr.Conflict("client", "email", c.Email)
	default:
		return fmt.Errorf("save client %d: %w", c.ID, err)
	}
}

func (s *GormStore) FindClient(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).Take(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("client", id)
		}
		return nil, fmt.Errorf("find client %d: %w", id, err)
	}
	return &c, nil
}

func (s *GormStore) FindClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var c models.Client
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("client", email)
		}
		return nil, fmt.Errorf("find client %s: %w", email, err)
	}
	return &c, nil
}

func (s *GormStore) ListClients(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	if err := s.db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return out, nil
}

func (s *GormStore) SearchClients(ctx context.Context, term string) ([]models.Client, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	var out []models.Client
	if err := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like).
		Order("name ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	return out, nil
}

func (s *GormStore) DeleteClient(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.Invoice{}).Where("client_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return &apperr.ConflictError{Resource: "client", Field: "id", Value: id,
				Reason: fmt.Sprintf("referenced by %d invoice(s)", refs)}
		}
		res := tx.Delete(&models.Client{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("client", id)
		}
		return nil
	})
	switch {
	case err == nil, apperr.IsNotFound(err), apperr.IsConflict(err):
		return err
	case isForeignKey(err):
		return &apperr.ConflictError{Resource: "client", Field: "id", Value: id, Reason: "referenced by invoices"}
	default:
		return fmt.Errorf("delete client %d: %w", id, err)
	}
}
