package models

import "time"

// ExpenseRecord is one invoice-backed cost as consumed from the read model.
type ExpenseRecord struct {
	ID            string       `json:"id"`
	ProjectID     string       `json:"project_id,omitempty"`
	InvoiceNumber string       `json:"invoice_number"`
	InvoiceDate   time.Time    `json:"invoice_date"`
	VendorName    string       `json:"vendor_name"`
	VendorNIP     string       `json:"vendor_nip"`
	NetAmount     float64      `json:"net_amount"`
	VATAmount     float64      `json:"vat_amount"`
	GrossAmount   float64      `json:"gross_amount"`
	Currency      string       `json:"currency"`
	Category      CostCategory `json:"br_category"`
	Qualified     bool         `json:"br_qualified"`
	DeductionRate float64      `json:"br_deduction_rate"` // fraction or percent; zero means category default
	Justification string       `json:"br_justification,omitempty"`
	Status        string       `json:"status,omitempty"`
	DocumentRef   string       `json:"document_ref,omitempty"`
}

// EffectiveDeductionRate returns the record's own rate when set, falling back
// to the statutory rate for its category. Percent notation is normalised.
func (e ExpenseRecord) EffectiveDeductionRate() float64 {
	if e.DeductionRate > 0 {
		return normalizeRate(e.DeductionRate)
	}
	return e.Category.DeductionRate()
}

// DeductionAmount returns gross x effective rate for qualified records, zero otherwise.
func (e ExpenseRecord) DeductionAmount() float64 {
	if !e.Qualified {
		return 0
	}
	return e.GrossAmount * e.EffectiveDeductionRate()
}

// normalizeRate treats values above the 200% statutory ceiling as percent notation.
// A rate of 2.0 is the personnel multiplier; 200 means the same thing.
func normalizeRate(v float64) float64 {
	if v > 2 {
		return v / 100
	}
	return v
}

// RevenueRecord is one IP-relevant revenue line from the read model.
type RevenueRecord struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id,omitempty"`
	InvoiceNumber string    `json:"invoice_number"`
	InvoiceDate   time.Time `json:"invoice_date"`
	ClientName    string    `json:"client_name"`
	ClientNIP     string    `json:"client_nip,omitempty"`
	NetAmount     float64   `json:"net_amount"`
	GrossAmount   float64   `json:"gross_amount"`
	Currency      string    `json:"currency"`
	IPQualified   bool      `json:"ip_qualified"`
	IPDescription string    `json:"ip_description,omitempty"`
}

// OCRResult carries the text layer extracted from a scanned invoice.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100
	Engine     string  `json:"engine,omitempty"`
	PageCount  int     `json:"page_count,omitempty"`
}

// Invoice is the full read-model row for one invoice document.
type Invoice struct {
	ID          string         `json:"id"`
	Expense     *ExpenseRecord `json:"expense,omitempty"`
	OCR         *OCRResult     `json:"ocr,omitempty"`
	PlainText   string         `json:"plain_text,omitempty"`
	ReceivedAt  time.Time      `json:"received_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}
