package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/invoicing/httpx"
	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/diewo77/invoicing/internal/pdf"
	"github.com/diewo77/invoicing/internal/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type lineItemRequest struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func toInputs(items []lineItemRequest) []services.LineItemInput {
	out := make([]services.LineItemInput, len(items))
	for i, it := range items {
		out[i] = services.LineItemInput{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

type invoiceRequest struct {
	Number      string            `json:"number" validate:"max=50"`
	ClientID    uint              `json:"client_id" validate:"required"`
	InvoiceDate string            `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate     string            `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Items       []lineItemRequest `json:"items" validate:"dive"`
	TaxRate     decimal.Decimal   `json:"tax_rate"`
	Status      string            `json:"status"`
	Notes       string            `json:"notes"`
	Terms       string            `json:"terms"`
}

func (req invoiceRequest) input() (services.CreateInvoiceInput, error) {
	in := services.CreateInvoiceInput{
		Number:   req.Number,
		ClientID: req.ClientID,
		Items:    toInputs(req.Items),
		TaxRate:  req.TaxRate,
		Notes:    req.Notes,
		Terms:    req.Terms,
	}
	var err error
	if in.InvoiceDate, err = parseDate("invoice_date", req.InvoiceDate); err != nil {
		return in, err
	}
	if in.DueDate, err = parseDate("due_date", req.DueDate); err != nil {
		return in, err
	}
	if req.Status != "" {
		if in.Status, err = models.ParsePaymentStatus(req.Status); err != nil {
			return in, err
		}
	}
	return in, nil
}

// invoiceUpdateRequest mirrors invoiceRequest with every field optional.
// A present "items" array replaces the stored items, even when empty.
type invoiceUpdateRequest struct {
	ClientID    *uint              `json:"client_id"`
	InvoiceDate *string            `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate     *string            `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Items       *[]lineItemRequest `json:"items" validate:"omitempty,dive"`
	TaxRate     *decimal.Decimal   `json:"tax_rate"`
	Status      *string            `json:"status"`
	Notes       *string            `json:"notes"`
	Terms       *string            `json:"terms"`
}

func (req invoiceUpdateRequest) input() (services.UpdateInvoiceInput, error) {
	in := services.UpdateInvoiceInput{
		ClientID: req.ClientID,
		TaxRate:  req.TaxRate,
		Notes:    req.Notes,
		Terms:    req.Terms,
	}
	if req.Items != nil {
		items := toInputs(*req.Items)
		in.Items = &items
	}
	if req.InvoiceDate != nil {
		d, err := parseDate("invoice_date", *req.InvoiceDate)
		if err != nil {
			return in, err
		}
		in.InvoiceDate = &d
	}
	if req.DueDate != nil {
		d, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			return in, err
		}
		in.DueDate = &d
	}
	if req.Status != nil {
		s, err := models.ParsePaymentStatus(*req.Status)
		if err != nil {
			return in, err
		}
		in.Status = &s
	}
	return in, nil
}

type emailRequest struct {
	ToEmail string `json:"to_email" validate:"omitempty,email"`
	Subject string `json:"subject" validate:"max=255"`
	Body    string `json:"body"`
}

type emailResponse struct {
	Message string `json:"message"`
	*services.SentEmail
}

type InvoiceHandler struct {
	invoices *services.InvoiceService
	notifier *services.NotificationService
	renderer services.Renderer
	log      logrus.FieldLogger
}

func NewInvoiceHandler(invoices *services.InvoiceService, notifier *services.NotificationService, renderer services.Renderer, log logrus.FieldLogger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, notifier: notifier, renderer: renderer, log: log}
}

// List returns invoices, optionally narrowed by client_id, status and a
// start_date/end_date pair.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f services.InvoiceFilter
	if raw := q.Get("client_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			httpx.Error(w, apperr.Validation("client_id", "invalid_id"))
			return
		}
		f.ClientID = uint(id)
	}
	if raw := q.Get("status"); raw != "" {
		s, err := models.ParsePaymentStatus(raw)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		f.Status = s
	}
	var err error
	if f.StartDate, err = parseDate("start_date", q.Get("start_date")); err != nil {
		httpx.Error(w, err)
		return
	}
	if f.EndDate, err = parseDate("end_date", q.Get("end_date")); err != nil {
		httpx.Error(w, err)
		return
	}
	h.respondList(w, func() ([]models.Invoice, error) { return h.invoices.List(r.Context(), f) })
}

func (h *InvoiceHandler) respondList(w http.ResponseWriter, fetch func() ([]models.Invoice, error)) {
	invoices, err := fetch()
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

// Overdue lists invoices overdue today, or as of ?as_of=YYYY-MM-DD.
func (h *InvoiceHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate("as_of", r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.respondList(w, func() ([]models.Invoice, error) { return h.invoices.Overdue(r.Context(), asOf) })
}

func (h *InvoiceHandler) ListByClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.respondList(w, func() ([]models.Invoice, error) { return h.invoices.ListByClient(r.Context(), id) })
}

func (h *InvoiceHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := models.ParsePaymentStatus(r.PathValue("status"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.respondList(w, func() ([]models.Invoice, error) { return h.invoices.ListByStatus(r.Context(), status) })
}

// ListByDateRange requires both startDate and endDate.
func (h *InvoiceHandler) ListByDateRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var start, end time.Time
	var err error
	if start, err = parseDate("startDate", q.Get("startDate")); err != nil || start.IsZero() {
		httpx.Error(w, apperr.Validation("startDate", "invalid_date"))
		return
	}
	if end, err = parseDate("endDate", q.Get("endDate")); err != nil || end.IsZero() {
		httpx.Error(w, apperr.Validation("endDate", "invalid_date"))
		return
	}
	h.respondList(w, func() ([]models.Invoice, error) { return h.invoices.ListByDateRange(r.Context(), start, end) })
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.GetByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := decode(w, r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.Error(w, err)
		return
	}
	inv, err := h.invoices.Create(r.Context(), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req invoiceUpdateRequest
	if err := decode(w, r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.Error(w, err)
		return
	}
	inv, err := h.invoices.Update(r.Context(), id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// UpdateStatus takes the new status from ?status=.
func (h *InvoiceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	status, err := models.ParsePaymentStatus(r.URL.Query().Get("status"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	inv, err := h.invoices.UpdateStatus(r.Context(), id, status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.invoices.Delete(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, message{Message: "Invoice deleted successfully"})
}

// PDF streams the rendered invoice as an attachment.
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	doc, err := h.renderer.Render(inv.Snapshot())
	if err != nil {
		h.log.WithError(err).WithField("invoice_id", id).Error("pdf render failed")
		httpx.Error(w, apperr.Transport("render pdf", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pdf.Filename(inv.Number)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// SendEmail mails the invoice PDF. The body is optional.
func (h *InvoiceHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req emailRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			httpx.Error(w, err)
			return
		}
	}
	sent, err := h.notifier.SendInvoice(r.Context(), id, services.EmailRequest{To: req.ToEmail, Subject: req.Subject, Body: req.Body})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, emailResponse{Message: "Invoice sent successfully", SentEmail: sent})
}

func (h *InvoiceHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	sent, err := h.notifier.SendReminder(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, emailResponse{Message: "Payment reminder sent successfully", SentEmail: sent})
}

// Dashboard returns the summary figures.
func (h *InvoiceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := h.invoices.Summary(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

// Lookup serves GET /api/invoices/{kind}/{value} for the number, client and
// status lookups. They share one pattern so they do not collide with
// /api/invoices/{id}/pdf in the mux.
func (h *InvoiceHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	value := r.PathValue("value")
	switch r.PathValue("kind") {
	case "number":
		r.SetPathValue("number", value)
		h.GetByNumber(w, r)
	case "client":
		r.SetPathValue("id", value)
		h.ListByClient(w, r)
	case "status":
		r.SetPathValue("status", value)
		h.ListByStatus(w, r)
	default:
		httpx.JSONError(w, http.StatusNotFound, "not_found", r.URL.Path)
	}
}
