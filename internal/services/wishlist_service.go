package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

var (
	// ErrWishlistInvalidInput indicates the caller supplied invalid input.
	ErrWishlistInvalidInput = errors.New("wishlist service: invalid input")
	// ErrWishlistNotFound indicates the product is not on the wishlist.
	ErrWishlistNotFound = errors.New("wishlist service: not found")
)

// WishlistServiceDeps wires repositories for wishlist operations.
type WishlistServiceDeps struct {
	Repository repositories.WishlistRepository
	Catalog    repositories.CatalogRepository
	Clock      func() time.Time
}

type wishlistService struct {
	repo    repositories.WishlistRepository
	catalog repositories.CatalogRepository
	now     func() time.Time
}

// NewWishlistService constructs a WishlistService.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Repository == nil {
		return nil, errors.New("wishlist service: repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("wishlist service: catalog repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &wishlistService{
		repo:    deps.Repository,
		catalog: deps.Catalog,
		now:     func() time.Time { return clock().UTC() },
	}, nil
}

func (s *wishlistService) GetWishlist(ctx context.Context, userID string) (Wishlist, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Wishlist{}, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	wishlist, err := s.repo.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Wishlist{UserID: userID, Items: []domain.WishlistItem{}}, nil
		}
		return Wishlist{}, err
	}
	return wishlist, nil
}

func (s *wishlistService) AddItem(ctx context.Context, cmd WishlistItemCommand) (Wishlist, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Wishlist{}, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Wishlist{}, fmt.Errorf("%w: product id is required", ErrWishlistInvalidInput)
	}

	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		if isRepoNotFound(err) {
			return Wishlist{}, fmt.Errorf("%w: product %s not found", ErrWishlistInvalidInput, productID)
		}
		return Wishlist{}, err
	}

	item := domain.WishlistItem{
		ProductID: productID,
		AddedAt:   s.now(),
	}
	if cmd.VariantID != nil {
		if variantID := strings.TrimSpace(*cmd.VariantID); variantID != "" {
			item.VariantID = &variantID
		}
	}

	return s.repo.PutItem(ctx, userID, item)
}

func (s *wishlistService) RemoveItem(ctx context.Context, cmd WishlistItemCommand) (Wishlist, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Wishlist{}, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Wishlist{}, fmt.Errorf("%w: product id is required", ErrWishlistInvalidInput)
	}

	wishlist, err := s.repo.DeleteItem(ctx, userID, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Wishlist{}, fmt.Errorf("%w: product %s not on wishlist", ErrWishlistNotFound, productID)
		}
		return Wishlist{}, err
	}
	return wishlist, nil
}
