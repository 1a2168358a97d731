package extract

import (
	"context"

	"github.com/nmercier/facturier/internal/render"
)

// InvoiceRecord is the normalized shape we want from the model,
// one per uploaded invoice. Immutable once produced.
type InvoiceRecord struct {
	CompanyName      string           `json:"company_name"`
	InvoiceReference InvoiceReference `json:"invoice_reference"`
	Articles         []LineItem       `json:"articles"`
}

// InvoiceReference is the invoice number and issuance date as printed
// on the document. The date is kept raw; normalization happens later.
type InvoiceReference struct {
	Number  string `json:"invoice_number"`
	DateRaw string `json:"invoice_date_raw"`
}

// LineItem is one billed article row. No arithmetic invariant is enforced
// between quantity, unit price and total; the model output is trusted as-is.
type LineItem struct {
	Reference   *string `json:"reference"` // nullable: some invoices carry no SKU
	Designation string  `json:"designation"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// Request carries one rendered invoice into a model call.
type Request struct {
	Pages    []render.Page
	Filename string
}

// Extractor is the interface the pipeline depends on. Implementations are
// one per provider envelope shape (chat-completions tool call vs.
// responses-API output), selected by configuration.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*InvoiceRecord, error)
}

// FunctionName is the single tool the model is constrained to call.
const FunctionName = "extract_invoice_data"

// Fixed sampling parameters. Pinned for reproducibility of extraction
// across runs on identical input; not configurable.
const (
	Temperature = 0
	TopP        = 1e-6
	Seed        = 42
	MaxTokens   = 5000
)

// MaxAttempts bounds the per-invoice retry loop.
const MaxAttempts = 3
