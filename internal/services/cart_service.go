package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart service: invalid input")
	// ErrCartNotFound indicates the requested cart or item does not exist.
	ErrCartNotFound = errors.New("cart service: not found")
	// ErrCartUnavailable indicates a backend failure while serving the request.
	ErrCartUnavailable = errors.New("cart service: unavailable")
)

// CartServiceDeps wires the repository and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Catalog     repositories.CatalogRepository
	Inventory   InventoryService
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type cartService struct {
	repo      repositories.CartRepository
	catalog   repositories.CatalogRepository
	inventory InventoryService
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errors.New("cart service: repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:      deps.Repository,
		catalog:   deps.Catalog,
		inventory: deps.Inventory,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// GetCart loads the cart for the user, returning an empty cart when absent.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.emptyCart(userID), nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(cart, userID), nil
}

func (s *cartService) AddItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error) {
	variant, err := s.validateItemInput(ctx, cmd)
	if err != nil {
		return Cart{}, err
	}

	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}

	now := s.now()
	items := cloneCartItems(cart.Items)
	idx := indexOfVariant(items, variant.ID)
	if idx >= 0 {
		items[idx].Quantity += cmd.Quantity
	} else {
		items = append(items, domain.CartItem{
			ID:        s.newID(),
			ProductID: variant.ProductID,
			VariantID: variant.ID,
			Quantity:  cmd.Quantity,
			AddedAt:   now,
		})
		idx = len(items) - 1
	}

	if err := s.checkAvailability(ctx, variant.ID, items[idx].Quantity); err != nil {
		return Cart{}, err
	}

	return s.saveItems(ctx, cart.UserID, items)
}

func (s *cartService) UpdateItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error) {
	variant, err := s.validateItemInput(ctx, cmd)
	if err != nil {
		return Cart{}, err
	}

	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}

	items := cloneCartItems(cart.Items)
	idx := indexOfVariant(items, variant.ID)
	if idx < 0 {
		return Cart{}, fmt.Errorf("%w: variant %s not in cart", ErrCartNotFound, variant.ID)
	}
	items[idx].Quantity = cmd.Quantity

	if err := s.checkAvailability(ctx, variant.ID, cmd.Quantity); err != nil {
		return Cart{}, err
	}

	return s.saveItems(ctx, cart.UserID, items)
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	variantID := strings.TrimSpace(cmd.VariantID)
	if variantID == "" {
		return Cart{}, fmt.Errorf("%w: variant id is required", ErrCartInvalidInput)
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	items := cloneCartItems(cart.Items)
	idx := indexOfVariant(items, variantID)
	if idx < 0 {
		return Cart{}, fmt.Errorf("%w: variant %s not in cart", ErrCartNotFound, variantID)
	}
	items = append(items[:idx], items[idx+1:]...)

	return s.saveItems(ctx, userID, items)
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if _, err := s.repo.ReplaceItems(ctx, userID, nil); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) validateItemInput(ctx context.Context, cmd UpsertCartItemCommand) (Variant, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return Variant{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	variantID := strings.TrimSpace(cmd.VariantID)
	if variantID == "" {
		return Variant{}, fmt.Errorf("%w: variant id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Variant{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		if isRepoNotFound(err) {
			return Variant{}, fmt.Errorf("%w: variant %s not found", ErrCartInvalidInput, variantID)
		}
		return Variant{}, s.translateRepoError(err)
	}
	if !variant.IsActive {
		return Variant{}, fmt.Errorf("%w: variant %s is not available", ErrCartInvalidInput, variantID)
	}
	return variant, nil
}

func (s *cartService) checkAvailability(ctx context.Context, variantID string, quantity int) error {
	if s.inventory == nil {
		return nil
	}
	stock, err := s.inventory.GetStock(ctx, variantID)
	if err != nil {
		s.logger(ctx, "cart_stock_lookup_failed", map[string]any{
			"variantId": variantID,
			"error":     err.Error(),
		})
		return nil
	}
	if quantity > stock {
		return fmt.Errorf("%w: only %d in stock for %s", ErrCartInvalidInput, stock, variantID)
	}
	return nil
}

func (s *cartService) saveItems(ctx context.Context, userID string, items []domain.CartItem) (Cart, error) {
	saved, err := s.repo.ReplaceItems(ctx, userID, items)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, userID), nil
}

func (s *cartService) emptyCart(userID string) Cart {
	return Cart{
		ID:        userID,
		UserID:    userID,
		Items:     []domain.CartItem{},
		UpdatedAt: s.now(),
	}
}

func (s *cartService) normaliseCart(cart domain.Cart, userID string) domain.Cart {
	if strings.TrimSpace(cart.ID) == "" {
		cart.ID = userID
	}
	if strings.TrimSpace(cart.UserID) == "" {
		cart.UserID = userID
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = s.now()
	}
	return cart
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return fmt.Errorf("%w: concurrent cart update", ErrCartUnavailable)
		}
	}
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func indexOfVariant(items []domain.CartItem, variantID string) int {
	for i, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.VariantID), variantID) {
			return i
		}
	}
	return -1
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return []domain.CartItem{}
	}
	dup := make([]domain.CartItem, len(items))
	copy(dup, items)
	return dup
}
