package invoicing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	platformstorage "github.com/vastrakart/api/internal/platform/storage"
	"github.com/vastrakart/api/internal/services"
)

const (
	invoiceContentType = "text/html; charset=utf-8"

	// Invoice download links stay valid long enough for customers to fetch
	// them from order mail; expired links can be re-signed on demand.
	defaultURLExpiry = 7 * 24 * time.Hour
)

// ErrInvoiceInvalidInput indicates the order cannot be invoiced as supplied.
var ErrInvoiceInvalidInput = errors.New("invoicing: invalid input")

// GeneratorDeps bundles collaborators required to construct a Generator.
type GeneratorDeps struct {
	Bucket    string
	Objects   *gcs.Client
	SignedURL *platformstorage.Client
	Counters  services.CounterService
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// Generator renders GST invoices as HTML documents, stores them in Cloud
// Storage, and hands back a signed download reference.
type Generator struct {
	bucket    string
	objects   *gcs.Client
	signedURL *platformstorage.Client
	counters  services.CounterService
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
	printer   *message.Printer
	tmpl      *template.Template
}

var _ services.InvoiceGenerator = (*Generator)(nil)

// NewGenerator constructs the invoice generator.
func NewGenerator(deps GeneratorDeps) (*Generator, error) {
	bucket := strings.TrimSpace(deps.Bucket)
	if bucket == "" {
		return nil, errors.New("invoicing: bucket is required")
	}
	if deps.Objects == nil {
		return nil, errors.New("invoicing: storage client is required")
	}
	if deps.SignedURL == nil {
		return nil, errors.New("invoicing: signed url client is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("invoicing: counter service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	tmpl, err := template.New("invoice").Parse(invoiceTemplate)
	if err != nil {
		return nil, fmt.Errorf("invoicing: parse template: %w", err)
	}

	return &Generator{
		bucket:    bucket,
		objects:   deps.Objects,
		signedURL: deps.SignedURL,
		counters:  deps.Counters,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:  logger,
		printer: message.NewPrinter(language.MustParse("en-IN")),
		tmpl:    tmpl,
	}, nil
}

// Generate renders and stores the invoice for the order.
func (g *Generator) Generate(ctx context.Context, order services.Order) (services.Invoice, error) {
	if strings.TrimSpace(order.ID) == "" || strings.TrimSpace(order.OrderID) == "" {
		return services.Invoice{}, fmt.Errorf("%w: order identifiers are required", ErrInvoiceInvalidInput)
	}
	if len(order.Items) == 0 {
		return services.Invoice{}, fmt.Errorf("%w: order has no items", ErrInvoiceInvalidInput)
	}

	number, err := g.counters.NextInvoiceNumber(ctx)
	if err != nil {
		return services.Invoice{}, fmt.Errorf("invoicing: allocate invoice number: %w", err)
	}

	now := g.clock()
	body, err := g.render(order, number, now)
	if err != nil {
		return services.Invoice{}, err
	}

	object, err := platformstorage.BuildObjectPath(platformstorage.PurposeInvoice, platformstorage.PathParams{
		OrderID:       order.ID,
		InvoiceNumber: number,
	})
	if err != nil {
		return services.Invoice{}, fmt.Errorf("invoicing: build object path: %w", err)
	}

	if err := g.store(ctx, object, body); err != nil {
		return services.Invoice{}, err
	}

	signed, err := g.signedURL.SignedURL(ctx, g.bucket, object, platformstorage.SignedURLOptions{
		Download: &platformstorage.DownloadOptions{
			ExpiresIn:      defaultURLExpiry,
			ResponseType:   invoiceContentType,
			AllowAnonymous: true,
		},
	})
	if err != nil {
		return services.Invoice{}, fmt.Errorf("invoicing: sign download url: %w", err)
	}

	g.logger(ctx, "invoice_generated", map[string]any{
		"orderId": order.ID,
		"number":  number,
		"object":  object,
	})

	return services.Invoice{
		Number:      number,
		URL:         signed.URL,
		GeneratedAt: now,
	}, nil
}

func (g *Generator) store(ctx context.Context, object string, body []byte) error {
	writer := g.objects.Bucket(g.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = invoiceContentType
	writer.CacheControl = "private, max-age=0"
	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return fmt.Errorf("invoicing: write invoice object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("invoicing: close invoice object: %w", err)
	}
	return nil
}

type invoiceLine struct {
	Title     string
	Variant   string
	Quantity  int
	UnitPrice string
	LineTotal string
}

type invoiceView struct {
	Number        string
	OrderCode     string
	IssuedOn      string
	OrderedOn     string
	CustomerName  string
	AddressLines  []string
	PaymentMethod string
	Lines         []invoiceLine
	Subtotal      string
	Tax           string
	TaxLabel      string
	Shipping      string
	Discount      string
	Total         string
	HasDiscount   bool
}

func (g *Generator) render(order services.Order, number string, now time.Time) ([]byte, error) {
	lines := make([]invoiceLine, 0, len(order.Items))
	for _, item := range order.Items {
		variant := strings.TrimSpace(strings.Join(nonEmpty(item.Color, item.Size), " / "))
		lines = append(lines, invoiceLine{
			Title:     item.Title,
			Variant:   variant,
			Quantity:  item.Quantity,
			UnitPrice: g.rupees(item.UnitPrice),
			LineTotal: g.rupees(item.LineTotal),
		})
	}

	taxLabel := "GST"
	if len(order.Pricing.Tax.Details) == 1 {
		detail := order.Pricing.Tax.Details[0]
		taxLabel = fmt.Sprintf("%s (%.0f%%)", detail.Type, detail.Rate)
	}

	view := invoiceView{
		Number:        number,
		OrderCode:     order.OrderID,
		IssuedOn:      now.Format("02 Jan 2006"),
		OrderedOn:     order.CreatedAt.UTC().Format("02 Jan 2006"),
		CustomerName:  order.ShippingAddress.Name,
		AddressLines:  addressLines(order.ShippingAddress),
		PaymentMethod: string(order.Payment.Method),
		Lines:         lines,
		Subtotal:      g.rupees(order.Pricing.Subtotal),
		Tax:           g.rupees(order.Pricing.Tax.Amount),
		TaxLabel:      taxLabel,
		Shipping:      g.rupees(order.Pricing.ShippingFee),
		Discount:      g.rupees(order.Pricing.Discount),
		Total:         g.rupees(order.Pricing.TotalAmount),
		HasDiscount:   order.Pricing.Discount > 0,
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("invoicing: render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) rupees(amount float64) string {
	return g.printer.Sprintf("₹%.2f", amount)
}

func addressLines(addr services.Address) []string {
	lines := make([]string, 0, 4)
	if v := strings.TrimSpace(addr.Line1); v != "" {
		lines = append(lines, v)
	}
	if addr.Line2 != nil {
		if v := strings.TrimSpace(*addr.Line2); v != "" {
			lines = append(lines, v)
		}
	}
	cityState := strings.Join(nonEmpty(addr.City, addr.State, addr.PostalCode), ", ")
	if cityState != "" {
		lines = append(lines, cityState)
	}
	if v := strings.TrimSpace(addr.Country); v != "" {
		lines = append(lines, v)
	}
	return lines
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

const invoiceTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Invoice {{.Number}}</title>
<style>
body { font-family: Georgia, serif; margin: 2rem; color: #222; }
table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
th, td { padding: 0.4rem 0.6rem; border-bottom: 1px solid #ddd; text-align: left; }
td.amount, th.amount { text-align: right; }
.totals td { border: none; }
.grand { font-weight: bold; border-top: 2px solid #222; }
</style>
</head>
<body>
<h1>Tax Invoice</h1>
<p>
Invoice <strong>{{.Number}}</strong> &middot; issued {{.IssuedOn}}<br>
Order <strong>{{.OrderCode}}</strong> &middot; placed {{.OrderedOn}}<br>
Payment: {{.PaymentMethod}}
</p>
<p>
<strong>Billed to</strong><br>
{{.CustomerName}}<br>
{{range .AddressLines}}{{.}}<br>{{end}}
</p>
<table>
<thead>
<tr><th>Item</th><th>Variant</th><th class="amount">Qty</th><th class="amount">Unit price</th><th class="amount">Amount</th></tr>
</thead>
<tbody>
{{range .Lines}}
<tr><td>{{.Title}}</td><td>{{.Variant}}</td><td class="amount">{{.Quantity}}</td><td class="amount">{{.UnitPrice}}</td><td class="amount">{{.LineTotal}}</td></tr>
{{end}}
</tbody>
</table>
<table class="totals">
<tr><td></td><td class="amount">Subtotal</td><td class="amount">{{.Subtotal}}</td></tr>
<tr><td></td><td class="amount">{{.TaxLabel}}</td><td class="amount">{{.Tax}}</td></tr>
<tr><td></td><td class="amount">Shipping</td><td class="amount">{{.Shipping}}</td></tr>
{{if .HasDiscount}}<tr><td></td><td class="amount">Discount</td><td class="amount">&minus;{{.Discount}}</td></tr>{{end}}
<tr class="grand"><td></td><td class="amount">Total</td><td class="amount">{{.Total}}</td></tr>
</table>
</body>
</html>
`
