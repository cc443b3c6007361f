// Package pdf renders invoice snapshots as PDF documents.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/config"
	"github.com/diewo77/invoicing/internal/models"
	"github.com/diewo77/invoicing/internal/money"
	"github.com/jung-kurt/gofpdf"
)

const dateLayout = "Jan 02, 2006"

// Renderer lays out an invoice on a single A4 flow. It only formats values
// already present on the snapshot.
type Renderer struct {
	Company config.CompanyConfig
}

func NewRenderer(company config.CompanyConfig) *Renderer {
	return &Renderer{Company: company}
}

// Render returns the PDF bytes for s. Failures are reported as *apperr.TransportError.
func (r *Renderer) Render(s models.InvoiceSnapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+s.Number, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Company block (left) and invoice block (right)
	top := pdf.GetY()
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(95, 6, tr(r.Company.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{r.Company.Address, r.Company.City, r.Company.Phone, r.Company.Email} {
		if line != "" {
			pdf.CellFormat(95, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	leftBottom := pdf.GetY()

	pdf.SetXY(110, top)
	details := [][2]string{
		{"Invoice #:", s.Number},
		{"Invoice Date:", s.InvoiceDate.Format(dateLayout)},
		{"Due Date:", s.DueDate.Format(dateLayout)},
		{"Status:", string(s.Status)},
	}
	for _, d := range details {
		pdf.SetX(110)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(35, 5, d[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(50, 5, tr(d[1]), "", 1, "R", false, 0, "")
	}
	if y := pdf.GetY(); y < leftBottom {
		pdf.SetY(leftBottom)
	}
	pdf.Ln(8)

	// Bill to
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 6, "Bill To:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	billTo := []string{s.Client.Name, s.Client.ContactPerson}
	billTo = append(billTo, strings.Split(s.Client.FullAddress(), "\n")...)
	billTo = append(billTo, s.Client.Email, s.Client.Phone)
	if s.Client.GSTNumber != "" {
		billTo = append(billTo, "GST: "+s.Client.GSTNumber)
	}
	for _, line := range billTo {
		if line != "" {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(6)

	// Items table
	widths := []float64{90, 25, 32.5, 32.5}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Description", "Quantity", "Unit Price", "Total"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, it := range s.Items {
		pdf.CellFormat(widths[0], 6, tr(it.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, it.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, "$"+money.Format(it.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, "$"+money.Format(it.Total), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// Totals
	totals := [][2]string{{"Subtotal:", "$" + money.Format(s.Subtotal)}}
	if s.TaxRate.IsPositive() {
		totals = append(totals, [2]string{fmt.Sprintf("Tax (%s%%):", s.TaxRate.String()), "$" + money.Format(s.TaxAmount)})
	}
	totals = append(totals, [2]string{"Total:", "$" + money.Format(s.Total)})
	for i, t := range totals {
		style := ""
		if i == len(totals)-1 {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.SetX(115)
		pdf.CellFormat(40, 6, t[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, t[1], "", 1, "R", false, 0, "")
	}

	// Notes and terms
	for _, block := range [][2]string{{"Notes:", s.Notes}, {"Terms:", s.Terms}} {
		if strings.TrimSpace(block[1]) == "" {
			continue
		}
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, block[0], "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(block[1]), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperr.Transport("render pdf", err)
	}
	return buf.Bytes(), nil
}

// Filename is the download and attachment name of an invoice PDF.
func Filename(number string) string {
	return "Invoice_" + number + ".pdf"
}
