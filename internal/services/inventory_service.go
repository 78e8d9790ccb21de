package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryInsufficientStock indicates at least one line exceeds availability.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryVariantNotFound indicates a referenced variant does not exist.
	ErrInventoryVariantNotFound = errors.New("inventory: variant not found")
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Events    StockEventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	repo   repositories.InventoryRepository
	events StockEventPublisher
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		repo:   deps.Inventory,
		events: deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) DecrementStock(ctx context.Context, cmd StockDecrementCommand) (StockMutation, error) {
	lines, err := normaliseStockLines(cmd.Lines)
	if err != nil {
		return StockMutation{}, err
	}

	result, err := s.repo.Decrement(ctx, repositories.StockDecrementRequest{
		OrderRef: strings.TrimSpace(cmd.OrderRef),
		Lines:    lines,
		Now:      s.clock(),
	})
	if err != nil {
		return StockMutation{}, s.mapRepositoryError(err)
	}

	s.publishEvents(ctx, result.Events)
	return StockMutation{Remaining: result.Remaining, Events: result.Events}, nil
}

func (s *inventoryService) RestoreStock(ctx context.Context, cmd StockRestoreCommand) (StockMutation, error) {
	lines, err := normaliseStockLines(cmd.Lines)
	if err != nil {
		return StockMutation{}, err
	}

	result, err := s.repo.Restore(ctx, repositories.StockRestoreRequest{
		OrderRef: strings.TrimSpace(cmd.OrderRef),
		Reason:   strings.TrimSpace(cmd.Reason),
		Lines:    lines,
		Now:      s.clock(),
	})
	if err != nil {
		return StockMutation{}, s.mapRepositoryError(err)
	}

	s.publishEvents(ctx, result.Events)
	return StockMutation{Remaining: result.Remaining, Events: result.Events}, nil
}

func (s *inventoryService) GetStock(ctx context.Context, variantID string) (int, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return 0, fmt.Errorf("%w: variant id is required", ErrInventoryInvalidInput)
	}

	stocks, err := s.repo.GetStock(ctx, []string{variantID})
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}
	stock, ok := stocks[variantID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInventoryVariantNotFound, variantID)
	}
	return stock, nil
}

func (s *inventoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			if len(invErr.Shortfalls) > 0 {
				return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, describeShortfalls(invErr.Shortfalls))
			}
			return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, invErr.Message)
		case repositories.InventoryErrorVariantNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryVariantNotFound, invErr.Message)
		case repositories.InventoryErrorInvalidInput:
			return fmt.Errorf("%w: %s", ErrInventoryInvalidInput, invErr.Message)
		}
	}

	return err
}

func (s *inventoryService) publishEvents(ctx context.Context, events []domain.StockEvent) {
	if s.events == nil {
		return
	}
	for _, event := range events {
		if err := s.events.PublishStockEvent(ctx, event); err != nil {
			s.logger(ctx, "stock_event_publish_failed", map[string]any{
				"variantId": event.VariantID,
				"type":      event.Type,
				"error":     err.Error(),
			})
		}
	}
}

func describeShortfalls(shortfalls []repositories.InventoryShortfall) string {
	parts := make([]string, 0, len(shortfalls))
	for _, sf := range shortfalls {
		parts = append(parts, fmt.Sprintf("%s requested %d available %d", sf.VariantID, sf.Requested, sf.Available))
	}
	return strings.Join(parts, "; ")
}

// normaliseStockLines merges duplicate variants and validates quantities,
// returning lines in a deterministic order.
func normaliseStockLines(lines []StockLine) ([]domain.StockLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}

	aggregated := make(map[string]int, len(lines))
	for _, line := range lines {
		variantID := strings.TrimSpace(line.VariantID)
		if variantID == "" {
			return nil, fmt.Errorf("%w: line variant id is required", ErrInventoryInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInventoryInvalidInput, variantID)
		}
		aggregated[variantID] += line.Quantity
	}

	result := make([]domain.StockLine, 0, len(aggregated))
	for variantID, quantity := range aggregated {
		result = append(result, domain.StockLine{VariantID: variantID, Quantity: quantity})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VariantID < result[j].VariantID })
	return result, nil
}
