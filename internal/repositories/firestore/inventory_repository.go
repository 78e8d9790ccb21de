package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/vastrakart/api/internal/domain"
	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
	"github.com/vastrakart/api/internal/repositories"
)

const (
	stockEventReserved = "stock_decremented"
	stockEventRestored = "stock_restored"
)

// InventoryRepository mutates the stock field on variant documents. It shares
// the variants collection with CatalogRepository but is the only writer of
// stock counts.
type InventoryRepository struct {
	provider *pfirestore.Provider
	variants *pfirestore.BaseRepository[variantDocument]
}

func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	variants := pfirestore.NewBaseRepository[variantDocument](provider, variantsCollection, nil, nil)
	return &InventoryRepository{provider: provider, variants: variants}, nil
}

// Decrement subtracts stock for every line inside a single transaction. Any
// line whose stock is below the requested quantity aborts the transaction,
// so either every variant is decremented or none is.
func (r *InventoryRepository) Decrement(ctx context.Context, req repositories.StockDecrementRequest) (repositories.StockMutationResult, error) {
	if r == nil || r.provider == nil {
		return repositories.StockMutationResult{}, errors.New("inventory repository not initialised")
	}
	lines, err := normaliseStockLines(req.Lines)
	if err != nil {
		return repositories.StockMutationResult{}, err
	}

	now := req.Now.UTC()
	var result repositories.StockMutationResult
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs := make(map[string]variantDocument, len(lines))
		refs := make(map[string]*firestore.DocumentRef, len(lines))
		var shortfalls []repositories.InventoryShortfall

		// Reads happen for every line before any write so the error can
		// report every shortfall, not just the first.
		for _, line := range lines {
			ref, err := r.variants.DocumentRef(ctx, line.VariantID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewInventoryError(repositories.InventoryErrorVariantNotFound, fmt.Sprintf("variant %s not found", line.VariantID), err)
				}
				return err
			}
			var doc variantDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode variant %s: %w", line.VariantID, err)
			}
			if doc.Stock < line.Quantity {
				shortfalls = append(shortfalls, repositories.InventoryShortfall{
					VariantID: line.VariantID,
					Requested: line.Quantity,
					Available: doc.Stock,
				})
			}
			docs[line.VariantID] = doc
			refs[line.VariantID] = ref
		}
		if len(shortfalls) > 0 {
			invErr := repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("insufficient stock for %d line(s)", len(shortfalls)), nil)
			invErr.Shortfalls = shortfalls
			return invErr
		}

		remaining := make(map[string]int, len(lines))
		events := make([]domain.StockEvent, 0, len(lines))
		for _, line := range lines {
			doc := docs[line.VariantID]
			doc.Stock -= line.Quantity
			doc.UpdatedAt = now
			if err := tx.Set(refs[line.VariantID], doc); err != nil {
				return err
			}
			remaining[line.VariantID] = doc.Stock
			events = append(events, domain.StockEvent{
				Type:       stockEventReserved,
				OrderRef:   req.OrderRef,
				VariantID:  line.VariantID,
				Delta:      -line.Quantity,
				Remaining:  doc.Stock,
				OccurredAt: now,
			})
		}

		result = repositories.StockMutationResult{Remaining: remaining, Events: events}
		return nil
	})
	if err != nil {
		return repositories.StockMutationResult{}, wrapInventoryError("inventory.decrement", err)
	}
	return result, nil
}

// Restore adds stock back for every line inside a single transaction.
func (r *InventoryRepository) Restore(ctx context.Context, req repositories.StockRestoreRequest) (repositories.StockMutationResult, error) {
	if r == nil || r.provider == nil {
		return repositories.StockMutationResult{}, errors.New("inventory repository not initialised")
	}
	lines, err := normaliseStockLines(req.Lines)
	if err != nil {
		return repositories.StockMutationResult{}, err
	}

	now := req.Now.UTC()
	var result repositories.StockMutationResult
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		remaining := make(map[string]int, len(lines))
		events := make([]domain.StockEvent, 0, len(lines))
		for _, line := range lines {
			ref, err := r.variants.DocumentRef(ctx, line.VariantID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewInventoryError(repositories.InventoryErrorVariantNotFound, fmt.Sprintf("variant %s not found", line.VariantID), err)
				}
				return err
			}
			var doc variantDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode variant %s: %w", line.VariantID, err)
			}
			doc.Stock += line.Quantity
			doc.UpdatedAt = now
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			remaining[line.VariantID] = doc.Stock
			events = append(events, domain.StockEvent{
				Type:       stockEventRestored,
				OrderRef:   req.OrderRef,
				VariantID:  line.VariantID,
				Delta:      line.Quantity,
				Remaining:  doc.Stock,
				OccurredAt: now,
			})
		}
		result = repositories.StockMutationResult{Remaining: remaining, Events: events}
		return nil
	})
	if err != nil {
		return repositories.StockMutationResult{}, wrapInventoryError("inventory.restore", err)
	}
	return result, nil
}

func (r *InventoryRepository) GetStock(ctx context.Context, variantIDs []string) (map[string]int, error) {
	if r == nil || r.variants == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	levels := make(map[string]int, len(variantIDs))
	for _, id := range variantIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		doc, err := r.variants.Get(ctx, id)
		if err != nil {
			if repoErr, ok := err.(*pfirestore.Error); ok && repoErr.IsNotFound() {
				return nil, repositories.NewInventoryError(repositories.InventoryErrorVariantNotFound, fmt.Sprintf("variant %s not found", id), err)
			}
			return nil, wrapInventoryError("inventory.getStock", err)
		}
		levels[id] = doc.Data.Stock
	}
	return levels, nil
}

// Helpers --------------------------------------------------------------------

func normaliseStockLines(lines []domain.StockLine) ([]domain.StockLine, error) {
	if len(lines) == 0 {
		return nil, repositories.NewInventoryError(repositories.InventoryErrorInvalidInput, "inventory: at least one line is required", nil)
	}
	merged := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.VariantID)
		if id == "" {
			return nil, repositories.NewInventoryError(repositories.InventoryErrorInvalidInput, "inventory: variant id is required", nil)
		}
		if line.Quantity <= 0 {
			return nil, repositories.NewInventoryError(repositories.InventoryErrorInvalidInput, fmt.Sprintf("inventory: quantity for %s must be > 0", id), nil)
		}
		if _, seen := merged[id]; !seen {
			order = append(order, id)
		}
		merged[id] += line.Quantity
	}
	out := make([]domain.StockLine, 0, len(order))
	for _, id := range order {
		out = append(out, domain.StockLine{VariantID: id, Quantity: merged[id]})
	}
	return out, nil
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}
