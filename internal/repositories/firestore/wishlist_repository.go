package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/vastrakart/api/internal/domain"
	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
	"github.com/vastrakart/api/internal/repositories"
)

const wishlistCollectionPattern = "users/%s/wishlist"

// WishlistRepository persists saved products per user as a subcollection
// keyed by product ID.
type WishlistRepository struct {
	provider *pfirestore.Provider
}

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	return &WishlistRepository{provider: provider}, nil
}

// Get returns the full wishlist ordered by most recent addition.
func (r *WishlistRepository) Get(ctx context.Context, userID string) (domain.Wishlist, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Wishlist{}, err
	}

	iter := coll.OrderBy("addedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	wishlist := domain.Wishlist{UserID: strings.TrimSpace(userID)}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.Wishlist{}, pfirestore.WrapError("wishlist.get", err)
		}
		var doc wishlistItemDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Wishlist{}, fmt.Errorf("decode wishlist item %s: %w", snap.Ref.ID, err)
		}
		wishlist.Items = append(wishlist.Items, domain.WishlistItem{
			ProductID: snap.Ref.ID,
			VariantID: doc.VariantID,
			AddedAt:   doc.AddedAt,
		})
		if doc.AddedAt.After(wishlist.UpdatedAt) {
			wishlist.UpdatedAt = doc.AddedAt
		}
	}
	return wishlist, nil
}

// PutItem stores the item, preserving the original addedAt when it already exists.
func (r *WishlistRepository) PutItem(ctx context.Context, userID string, item domain.WishlistItem) (domain.Wishlist, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Wishlist{}, err
	}
	productID := strings.TrimSpace(item.ProductID)
	if productID == "" {
		return domain.Wishlist{}, errors.New("wishlist repository: product id is required")
	}

	doc := wishlistItemDocument{
		VariantID: item.VariantID,
		AddedAt:   item.AddedAt.UTC(),
	}
	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now().UTC()
	}
	if snap, err := coll.Doc(productID).Get(ctx); err == nil {
		var current wishlistItemDocument
		if err := snap.DataTo(&current); err == nil && !current.AddedAt.IsZero() {
			doc.AddedAt = current.AddedAt
		}
	}
	if _, err := coll.Doc(productID).Set(ctx, doc); err != nil {
		return domain.Wishlist{}, pfirestore.WrapError("wishlist.put", err)
	}
	return r.Get(ctx, userID)
}

// DeleteItem removes the item for the given product.
func (r *WishlistRepository) DeleteItem(ctx context.Context, userID string, productID string) (domain.Wishlist, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Wishlist{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Wishlist{}, errors.New("wishlist repository: product id is required")
	}
	if _, err := coll.Doc(productID).Delete(ctx); err != nil {
		return domain.Wishlist{}, pfirestore.WrapError("wishlist.delete", err)
	}
	return r.Get(ctx, userID)
}

func (r *WishlistRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("wishlist repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("wishlist repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(wishlistCollectionPattern, uid)), nil
}

type wishlistItemDocument struct {
	VariantID *string   `firestore:"variantId,omitempty"`
	AddedAt   time.Time `firestore:"addedAt"`
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)
