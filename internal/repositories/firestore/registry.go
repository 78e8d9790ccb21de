package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
	"github.com/vastrakart/api/internal/repositories"
)

// Registry aggregates the Firestore-backed repositories behind the
// repositories.Registry contract used by dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	orders    *OrderRepository
	inventory *InventoryRepository
	catalog   *CatalogRepository
	carts     *CartRepository
	wishlists *WishlistRepository
	coupons   *CouponRepository
	addresses *AddressRepository
	counters  *CounterRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryDeps bundles collaborators required to construct a Registry.
type RegistryDeps struct {
	Provider *pfirestore.Provider
	// Health is assembled by the caller so probes beyond Firestore
	// (Pub/Sub, SMTP) can be included.
	Health repositories.HealthRepository
}

// NewRegistry constructs every Firestore repository over a shared provider.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.Provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}

	reg := &Registry{
		provider: deps.Provider,
		health:   deps.Health,
	}

	var err error
	if reg.orders, err = NewOrderRepository(deps.Provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.inventory, err = NewInventoryRepository(deps.Provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.catalog, err = NewCatalogRepository(deps.Provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.carts, err = NewCartRepository(deps.Provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.wishlists, err = NewWishlistRepository(deps.Provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.coupons, err = NewCouponRepository(deps.Provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.addresses, err = NewAddressRepository(deps.Provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	if reg.counters, err = NewCounterRepository(deps.Provider); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}

	return reg, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) Inventory() repositories.InventoryRepository { return r.inventory }
func (r *Registry) Catalog() repositories.CatalogRepository     { return r.catalog }
func (r *Registry) Carts() repositories.CartRepository          { return r.carts }
func (r *Registry) Wishlists() repositories.WishlistRepository  { return r.wishlists }
func (r *Registry) Coupons() repositories.CouponRepository      { return r.coupons }
func (r *Registry) Addresses() repositories.AddressRepository   { return r.addresses }
func (r *Registry) Counters() repositories.CounterRepository    { return r.counters }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }

// RunInTx executes fn directly. Each repository method already runs its
// mutations inside its own Firestore transaction, and the Firestore client
// does not support nesting them.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
