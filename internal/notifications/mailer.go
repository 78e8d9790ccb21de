package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	gomail "gopkg.in/gomail.v2"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

// ErrNoRecipient indicates the order's user has no deliverable address.
var ErrNoRecipient = errors.New("notifications: no recipient address")

// MessageSender abstracts gomail's dialer so tests can capture outgoing mail.
type MessageSender interface {
	Send(messages ...*gomail.Message) error
}

type dialerSender struct {
	dialer *gomail.Dialer
}

func (s dialerSender) Send(messages ...*gomail.Message) error {
	return s.dialer.DialAndSend(messages...)
}

// RecipientLookup resolves the email address for a user id.
type RecipientLookup func(ctx context.Context, userID string) (string, error)

// MailerDeps bundles collaborators required to construct a Mailer.
type MailerDeps struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Sender    MessageSender
	Recipient RecipientLookup
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// Mailer sends transactional order mail over SMTP.
type Mailer struct {
	from      string
	sender    MessageSender
	recipient RecipientLookup
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
	printer   *message.Printer
}

var _ services.OrderMailer = (*Mailer)(nil)

// NewMailer constructs the SMTP mailer. When Sender is nil a gomail dialer is
// built from the SMTP settings.
func NewMailer(deps MailerDeps) (*Mailer, error) {
	from := strings.TrimSpace(deps.From)
	if from == "" {
		return nil, errors.New("notifications: from address is required")
	}
	if deps.Recipient == nil {
		return nil, errors.New("notifications: recipient lookup is required")
	}

	sender := deps.Sender
	if sender == nil {
		host := strings.TrimSpace(deps.Host)
		if host == "" {
			return nil, errors.New("notifications: smtp host is required")
		}
		port := deps.Port
		if port <= 0 {
			port = 587
		}
		sender = dialerSender{dialer: gomail.NewDialer(host, port, deps.Username, deps.Password)}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Mailer{
		from:      from,
		sender:    sender,
		recipient: deps.Recipient,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:  logger,
		printer: message.NewPrinter(language.MustParse("en-IN")),
	}, nil
}

// SendOrderConfirmation mails the order summary after checkout.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, order services.Order) error {
	to, err := m.resolveRecipient(ctx, order.UserID)
	if err != nil {
		return err
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Thank you for your order %s.\n\n", order.OrderID)
	m.writeItems(&body, order)
	m.writeTotals(&body, order)
	fmt.Fprintf(&body, "\nPayment method: %s\n", order.Payment.Method)
	if order.Tracking == nil {
		body.WriteString("We will email you again when your order ships.\n")
	}

	return m.send(ctx, to,
		fmt.Sprintf("Order %s confirmed", order.OrderID),
		body.String(),
		"order_confirmation", order.ID)
}

// SendStatusUpdate mails the customer after a lifecycle transition.
func (m *Mailer) SendStatusUpdate(ctx context.Context, order services.Order, previous services.OrderStatus) error {
	to, err := m.resolveRecipient(ctx, order.UserID)
	if err != nil {
		return err
	}

	var body strings.Builder
	if previous != "" && previous != order.Status {
		fmt.Fprintf(&body, "Your order %s moved from %s to %s.\n", order.OrderID, previous, order.Status)
	} else {
		fmt.Fprintf(&body, "Your order %s is now %s.\n", order.OrderID, order.Status)
	}
	switch order.Status {
	case domain.OrderStatusShipped:
		if order.Tracking != nil {
			fmt.Fprintf(&body, "\nCarrier: %s\nTracking number: %s\n", order.Tracking.Carrier, order.Tracking.TrackingNumber)
		}
	case domain.OrderStatusCancelled:
		body.WriteString("\nAny captured payment will be refunded to the original method.\n")
	case domain.OrderStatusDelivered:
		body.WriteString("\nWe hope you love it. Returns are accepted within the return window shown in your account.\n")
	}

	return m.send(ctx, to,
		fmt.Sprintf("Order %s: %s", order.OrderID, order.Status),
		body.String(),
		"order_status_update", order.ID)
}

// SendRefundNotice mails the customer after a refund is processed.
func (m *Mailer) SendRefundNotice(ctx context.Context, order services.Order, refund services.Refund) error {
	to, err := m.resolveRecipient(ctx, order.UserID)
	if err != nil {
		return err
	}

	var body strings.Builder
	fmt.Fprintf(&body, "A refund of %s has been processed for order %s.\n", m.rupees(refund.Amount), order.OrderID)
	if reason := strings.TrimSpace(refund.Reason); reason != "" {
		fmt.Fprintf(&body, "Reason: %s\n", reason)
	}
	body.WriteString("\nDepending on your bank, the amount can take 5-7 business days to appear.\n")

	return m.send(ctx, to,
		fmt.Sprintf("Refund processed for order %s", order.OrderID),
		body.String(),
		"order_refund_notice", order.ID)
}

func (m *Mailer) resolveRecipient(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrNoRecipient
	}
	address, err := m.recipient(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("notifications: resolve recipient: %w", err)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrNoRecipient
	}
	return address, nil
}

func (m *Mailer) send(ctx context.Context, to, subject, body, event, orderID string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.sender.Send(msg); err != nil {
		return fmt.Errorf("notifications: send mail: %w", err)
	}
	m.logger(ctx, event, map[string]any{
		"orderId": orderID,
		"subject": subject,
	})
	return nil
}

func (m *Mailer) writeItems(body *strings.Builder, order services.Order) {
	for _, item := range order.Items {
		fmt.Fprintf(body, "%d x %s", item.Quantity, item.Title)
		variant := strings.TrimSpace(strings.Join(compact(item.Color, item.Size), " / "))
		if variant != "" {
			fmt.Fprintf(body, " (%s)", variant)
		}
		fmt.Fprintf(body, " - %s\n", m.rupees(item.LineTotal))
	}
}

func (m *Mailer) writeTotals(body *strings.Builder, order services.Order) {
	fmt.Fprintf(body, "\nSubtotal: %s\n", m.rupees(order.Pricing.Subtotal))
	fmt.Fprintf(body, "GST: %s\n", m.rupees(order.Pricing.Tax.Amount))
	fmt.Fprintf(body, "Shipping: %s\n", m.rupees(order.Pricing.ShippingFee))
	if order.Pricing.Discount > 0 {
		fmt.Fprintf(body, "Discount: -%s\n", m.rupees(order.Pricing.Discount))
	}
	fmt.Fprintf(body, "Total: %s\n", m.rupees(order.Pricing.TotalAmount))
}

func (m *Mailer) rupees(amount float64) string {
	return m.printer.Sprintf("₹%.2f", amount)
}

func compact(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
