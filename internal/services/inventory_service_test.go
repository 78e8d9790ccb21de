package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

type stubInventoryRepo struct {
	decrementFn func(context.Context, repositories.StockDecrementRequest) (repositories.StockMutationResult, error)
	restoreFn   func(context.Context, repositories.StockRestoreRequest) (repositories.StockMutationResult, error)
	getStockFn  func(context.Context, []string) (map[string]int, error)
}

func (s *stubInventoryRepo) Decrement(ctx context.Context, req repositories.StockDecrementRequest) (repositories.StockMutationResult, error) {
	if s.decrementFn != nil {
		return s.decrementFn(ctx, req)
	}
	return repositories.StockMutationResult{}, nil
}

func (s *stubInventoryRepo) Restore(ctx context.Context, req repositories.StockRestoreRequest) (repositories.StockMutationResult, error) {
	if s.restoreFn != nil {
		return s.restoreFn(ctx, req)
	}
	return repositories.StockMutationResult{}, nil
}

func (s *stubInventoryRepo) GetStock(ctx context.Context, variantIDs []string) (map[string]int, error) {
	if s.getStockFn != nil {
		return s.getStockFn(ctx, variantIDs)
	}
	return nil, errors.New("not implemented")
}

type captureStockEvents struct {
	events []StockEvent
}

func (c *captureStockEvents) PublishStockEvent(_ context.Context, event StockEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestInventoryServiceDecrementStock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	events := &captureStockEvents{}
	var captured repositories.StockDecrementRequest

	repo := &stubInventoryRepo{
		decrementFn: func(_ context.Context, req repositories.StockDecrementRequest) (repositories.StockMutationResult, error) {
			captured = req
			return repositories.StockMutationResult{
				Remaining: map[string]int{"var-1": 8},
				Events: []domain.StockEvent{
					{Type: "decrement", OrderRef: req.OrderRef, VariantID: "var-1", Delta: -2, Remaining: 8, OccurredAt: req.Now},
				},
			}, nil
		},
	}

	svc, err := NewInventoryService(InventoryServiceDeps{
		Inventory: repo,
		Events:    events,
		Clock:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	mutation, err := svc.DecrementStock(ctx, StockDecrementCommand{
		OrderRef: "ORD-1",
		Lines: []StockLine{
			{VariantID: "var-1", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}

	if mutation.Remaining["var-1"] != 8 {
		t.Fatalf("expected remaining 8 got %d", mutation.Remaining["var-1"])
	}
	if captured.OrderRef != "ORD-1" {
		t.Fatalf("expected order ref propagated got %s", captured.OrderRef)
	}
	if !captured.Now.Equal(now) {
		t.Fatalf("expected clock timestamp %s got %s", now, captured.Now)
	}
	if len(events.events) != 1 || events.events[0].Type != "decrement" {
		t.Fatalf("expected one decrement event got %#v", events.events)
	}
}

func TestInventoryServiceDecrementMergesDuplicateLines(t *testing.T) {
	ctx := context.Background()
	var captured repositories.StockDecrementRequest
	repo := &stubInventoryRepo{
		decrementFn: func(_ context.Context, req repositories.StockDecrementRequest) (repositories.StockMutationResult, error) {
			captured = req
			return repositories.StockMutationResult{}, nil
		},
	}

	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: repo})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	if _, err := svc.DecrementStock(ctx, StockDecrementCommand{
		Lines: []StockLine{
			{VariantID: "var-2", Quantity: 1},
			{VariantID: "var-1", Quantity: 2},
			{VariantID: "var-1", Quantity: 3},
		},
	}); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	if len(captured.Lines) != 2 {
		t.Fatalf("expected duplicates merged into 2 lines got %d", len(captured.Lines))
	}
	if captured.Lines[0].VariantID != "var-1" || captured.Lines[0].Quantity != 5 {
		t.Fatalf("expected var-1 quantity 5 first got %#v", captured.Lines[0])
	}
	if captured.Lines[1].VariantID != "var-2" || captured.Lines[1].Quantity != 1 {
		t.Fatalf("expected var-2 quantity 1 second got %#v", captured.Lines[1])
	}
}

func TestInventoryServiceDecrementShortfall(t *testing.T) {
	ctx := context.Background()
	repo := &stubInventoryRepo{
		decrementFn: func(context.Context, repositories.StockDecrementRequest) (repositories.StockMutationResult, error) {
			return repositories.StockMutationResult{}, &repositories.InventoryError{
				Op:   "inventory.decrement",
				Code: repositories.InventoryErrorInsufficientStock,
				Shortfalls: []repositories.InventoryShortfall{
					{VariantID: "var-1", Requested: 5, Available: 2},
				},
			}
		},
	}

	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: repo})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	_, err = svc.DecrementStock(ctx, StockDecrementCommand{
		Lines: []StockLine{{VariantID: "var-1", Quantity: 5}},
	})
	if !errors.Is(err, ErrInventoryInsufficientStock) {
		t.Fatalf("expected ErrInventoryInsufficientStock got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "var-1 requested 5 available 2") {
		t.Fatalf("expected shortfall detail in error, got %q", got)
	}
}

func TestInventoryServiceInvalidLines(t *testing.T) {
	ctx := context.Background()
	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: &stubInventoryRepo{}})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	cases := []struct {
		name  string
		lines []StockLine
	}{
		{name: "no lines", lines: nil},
		{name: "blank variant", lines: []StockLine{{VariantID: "  ", Quantity: 1}}},
		{name: "zero quantity", lines: []StockLine{{VariantID: "var-1", Quantity: 0}}},
		{name: "negative quantity", lines: []StockLine{{VariantID: "var-1", Quantity: -2}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.DecrementStock(ctx, StockDecrementCommand{Lines: tc.lines}); !errors.Is(err, ErrInventoryInvalidInput) {
				t.Fatalf("expected ErrInventoryInvalidInput got %v", err)
			}
			if _, err := svc.RestoreStock(ctx, StockRestoreCommand{Lines: tc.lines}); !errors.Is(err, ErrInventoryInvalidInput) {
				t.Fatalf("expected ErrInventoryInvalidInput got %v", err)
			}
		})
	}
}

func TestInventoryServiceRestoreStock(t *testing.T) {
	ctx := context.Background()
	var captured repositories.StockRestoreRequest
	repo := &stubInventoryRepo{
		restoreFn: func(_ context.Context, req repositories.StockRestoreRequest) (repositories.StockMutationResult, error) {
			captured = req
			return repositories.StockMutationResult{Remaining: map[string]int{"var-1": 10}}, nil
		},
	}

	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: repo})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	mutation, err := svc.RestoreStock(ctx, StockRestoreCommand{
		OrderRef: "ORD-1",
		Reason:   " order cancelled ",
		Lines:    []StockLine{{VariantID: "var-1", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if mutation.Remaining["var-1"] != 10 {
		t.Fatalf("expected remaining 10 got %d", mutation.Remaining["var-1"])
	}
	if captured.Reason != "order cancelled" {
		t.Fatalf("expected trimmed reason got %q", captured.Reason)
	}
}

func TestInventoryServiceGetStock(t *testing.T) {
	ctx := context.Background()
	repo := &stubInventoryRepo{
		getStockFn: func(_ context.Context, variantIDs []string) (map[string]int, error) {
			if len(variantIDs) != 1 || variantIDs[0] != "var-1" {
				t.Fatalf("unexpected lookup %v", variantIDs)
			}
			return map[string]int{"var-1": 7}, nil
		},
	}

	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: repo})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	stock, err := svc.GetStock(ctx, "var-1")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock != 7 {
		t.Fatalf("expected 7 got %d", stock)
	}

	repo.getStockFn = func(context.Context, []string) (map[string]int, error) {
		return map[string]int{}, nil
	}
	if _, err := svc.GetStock(ctx, "var-404"); !errors.Is(err, ErrInventoryVariantNotFound) {
		t.Fatalf("expected ErrInventoryVariantNotFound got %v", err)
	}
	if _, err := svc.GetStock(ctx, "  "); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected ErrInventoryInvalidInput got %v", err)
	}
}
