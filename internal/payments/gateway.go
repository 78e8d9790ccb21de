package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

const defaultCurrency = "INR"

// Gateway adapts the provider manager to the order service's payment contract.
// Amounts cross this boundary in rupees and are converted to paise for PSPs.
type Gateway struct {
	manager *Manager
	clock   func() time.Time
}

// GatewayDeps bundles collaborators required to construct a Gateway.
type GatewayDeps struct {
	Manager *Manager
	Clock   func() time.Time
}

var _ services.PaymentProvider = (*Gateway)(nil)

// NewGateway constructs the payment gateway used during checkout and refunds.
func NewGateway(deps GatewayDeps) (*Gateway, error) {
	if deps.Manager == nil {
		return nil, errors.New("payments gateway: manager is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Gateway{
		manager: deps.Manager,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// CreateIntent opens a payment intent for the order total.
func (g *Gateway) CreateIntent(ctx context.Context, cmd services.PaymentIntentCommand) (services.PaymentDetails, error) {
	if g == nil || g.manager == nil {
		return services.PaymentDetails{}, errors.New("payments gateway: not initialised")
	}
	if cmd.Amount <= 0 {
		return services.PaymentDetails{}, errors.New("payments gateway: amount must be positive")
	}

	method, err := parseGatewayMethod(cmd.Method)
	if err != nil {
		return services.PaymentDetails{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	details, err := g.manager.CreateIntent(ctx,
		PaymentContext{Currency: currency},
		CreateIntentRequest{
			Amount:         toMinorUnits(cmd.Amount),
			Currency:       currency,
			Method:         string(method),
			OrderCode:      cmd.OrderCode,
			CustomerID:     cmd.UserID,
			IdempotencyKey: cmd.OrderCode,
			Metadata:       cmd.Metadata,
		})
	if err != nil {
		return services.PaymentDetails{}, fmt.Errorf("payments gateway: create intent: %w", err)
	}

	return g.toDomainDetails(method, details), nil
}

// RefundPayment issues a refund against the captured intent and returns the
// PSP refund reference.
func (g *Gateway) RefundPayment(ctx context.Context, cmd services.PaymentRefundCommand) (string, error) {
	if g == nil || g.manager == nil {
		return "", errors.New("payments gateway: not initialised")
	}
	intentID := strings.TrimSpace(cmd.TransactionID)
	if intentID == "" {
		return "", errors.New("payments gateway: transaction id is required")
	}
	if cmd.Amount <= 0 {
		return "", errors.New("payments gateway: refund amount must be positive")
	}

	amount := toMinorUnits(cmd.Amount)
	result, err := g.manager.Refund(ctx,
		PaymentContext{Currency: defaultCurrency},
		RefundRequest{
			IntentID: intentID,
			Amount:   &amount,
			Reason:   cmd.Reason,
		})
	if err != nil {
		return "", fmt.Errorf("payments gateway: refund: %w", err)
	}
	if result.Status == StatusFailed {
		return "", fmt.Errorf("payments gateway: refund %s reported failed", result.RefundID)
	}
	return result.RefundID, nil
}

func (g *Gateway) toDomainDetails(method domain.PaymentMethod, details PaymentDetails) services.PaymentDetails {
	out := services.PaymentDetails{
		Method: method,
		Status: domain.PaymentStatusPending,
	}
	if details.IntentID != "" {
		id := details.IntentID
		out.TransactionID = &id
	}
	switch details.Status {
	case StatusSucceeded:
		out.Status = domain.PaymentStatusPaid
		paidAt := g.clock()
		if details.CapturedAt != nil {
			paidAt = details.CapturedAt.UTC()
		}
		out.PaidAt = &paidAt
	case StatusFailed:
		out.Status = domain.PaymentStatusFailed
	case StatusRefunded:
		out.Status = domain.PaymentStatusRefunded
	}
	return out
}

func parseGatewayMethod(method string) (domain.PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "card", "":
		return domain.PaymentMethodCard, nil
	case "creditcard":
		return domain.PaymentMethodCreditCard, nil
	case "debitcard":
		return domain.PaymentMethodDebitCard, nil
	case "upi":
		return domain.PaymentMethodUPI, nil
	case "netbanking":
		return domain.PaymentMethodNetBanking, nil
	case "cod":
		return "", errors.New("payments gateway: cod orders carry no payment intent")
	default:
		return "", fmt.Errorf("payments gateway: unsupported method %q", method)
	}
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
