package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/diewo77/invoicing/internal/notify"
	"github.com/diewo77/invoicing/internal/pdf"
	"github.com/diewo77/invoicing/internal/store"
	"github.com/diewo77/invoicing/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Renderer turns a computed invoice into PDF bytes.
type Renderer interface {
	Render(s models.InvoiceSnapshot) ([]byte, error)
}

// EmailRequest overrides the defaults of an invoice email. Empty fields fall
// back to the client's address and the built-in templates.
type EmailRequest struct {
	To      string
	Subject string
	Body    string
}

// SentEmail describes a delivered message.
type SentEmail struct {
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
}

var emailFuncs = template.FuncMap{
	"date":    func(t time.Time) string { return t.Format("2006-01-02") },
	"amount":  func(d decimal.Decimal) string { return d.StringFixed(2) },
	"company": func() string { return "" },
}

var (
	invoiceBody = template.Must(template.New("invoice").Funcs(emailFuncs).Parse(`Dear {{.Client.Name}},

Please find attached invoice {{.Number}} for your review.

Invoice Details:
Invoice Number: {{.Number}}
Invoice Date: {{date .InvoiceDate}}
Due Date: {{date .DueDate}}
Total Amount: ${{amount .Total}}

Thank you for your business!

Best regards,
{{company}}`))

	reminderBody = template.Must(template.New("reminder").Funcs(emailFuncs).Parse(`Dear {{.Client.Name}},

This is a friendly reminder that invoice {{.Number}} is due on {{date .DueDate}}.

Total Amount Due: ${{amount .Total}}

Please process the payment at your earliest convenience.

Thank you,
{{company}}`))
)

const sendLockTTL = 2 * time.Minute

type NotificationService struct {
	invoices store.InvoiceStore
	renderer Renderer
	mailer   notify.Mailer
	locker   notify.Locker
	from     string
	company  string
	log      logrus.FieldLogger
}

func NewNotificationService(invoices store.InvoiceStore, renderer Renderer, mailer notify.Mailer, locker notify.Locker,
	from, company string, log logrus.FieldLogger) *NotificationService {
	if locker == nil {
		locker = notify.NewLocalLocker()
	}
	return &NotificationService{
		invoices: invoices,
		renderer: renderer,
		mailer:   mailer,
		locker:   locker,
		from:     from,
		company:  company,
		log:      log.WithField("service", "notification"),
	}
}

func (s *NotificationService) render(tmpl *template.Template, snap models.InvoiceSnapshot) (string, error) {
	var buf bytes.Buffer
	t, err := tmpl.Clone()
	if err != nil {
		return "", err
	}
	t.Funcs(template.FuncMap{"company": func() string { return s.company }})
	if err := t.Execute(&buf, snap); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DefaultSubject is used when the caller does not supply one.
func DefaultSubject(number string) string { return "Invoice " + number }

// ReminderSubject is the subject of payment reminders.
func ReminderSubject(number string) string { return "Payment Reminder - Invoice " + number }

// SendInvoice emails invoice id with its PDF attached.
func (s *NotificationService) SendInvoice(ctx context.Context, id uint, req EmailRequest) (*SentEmail, error) {
	inv, err := s.invoices.FindInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := inv.Snapshot()
	if req.Subject == "" {
		req.Subject = DefaultSubject(snap.Number)
	}
	if req.Body == "" {
		if req.Body, err = s.render(invoiceBody, snap); err != nil {
			return nil, fmt.Errorf("render invoice email: %w", err)
		}
	}
	return s.deliver(ctx, snap, req)
}

// SendReminder emails a payment reminder for invoice id to the client's address.
func (s *NotificationService) SendReminder(ctx context.Context, id uint) (*SentEmail, error) {
	inv, err := s.invoices.FindInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := inv.Snapshot()
	body, err := s.render(reminderBody, snap)
	if err != nil {
		return nil, fmt.Errorf("render reminder email: %w", err)
	}
	return s.deliver(ctx, snap, EmailRequest{To: snap.Client.Email, Subject: ReminderSubject(snap.Number), Body: body})
}

func (s *NotificationService) deliver(ctx context.Context, snap models.InvoiceSnapshot, req EmailRequest) (*SentEmail, error) {
	to := strings.TrimSpace(req.To)
	if to == "" {
		to = snap.Client.Email
	}
	v := validation.Violations{}
	validation.Required("to_email", to, v)
	validation.Email("to_email", to, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	release, err := s.locker.Obtain(ctx, "invoice-email:"+snap.Number+":"+strings.ToLower(to), sendLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := s.renderer.Render(snap)
	if err != nil {
		if !apperr.IsTransport(err) {
			err = apperr.Transport("render pdf", err)
		}
		return nil, err
	}

	msg := notify.Message{
		ID:      uuid.NewString(),
		From:    s.from,
		To:      to,
		Subject: req.Subject,
		Body:    req.Body,
		Attachments: []notify.Attachment{
			{Filename: pdf.Filename(snap.Number), ContentType: "application/pdf", Data: doc},
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if !apperr.IsTransport(err) {
			err = apperr.Transport("send email", err)
		}
		s.log.WithFields(logrus.Fields{"number": snap.Number, "to": to}).WithError(err).Error("invoice email failed")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"number": snap.Number, "to": to, "message_id": msg.ID}).Info("invoice email sent")
	return &SentEmail{MessageID: msg.ID, To: to, Subject: msg.Subject}, nil
}
