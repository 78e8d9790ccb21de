package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vastrakart/api/internal/platform/config"
	"github.com/vastrakart/api/internal/repositories"
	"github.com/vastrakart/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled via dependency injection in NewContainer.
type Services struct {
	Pricing   services.PricingEngine
	Inventory services.InventoryService
	Orders    services.OrderService
	Cart      services.CartService
	Wishlist  services.WishlistService
	Catalog   services.CatalogService
	Coupons   services.CouponService
	Addresses services.AddressService
	Counters  services.CounterService
	System    services.SystemService
}

// ContainerDeps carries the integrations assembled outside the repository
// registry: payment gateway, invoice generation, mail, and event publishing.
type ContainerDeps struct {
	Registry    repositories.Registry
	Payments    services.PaymentProvider
	Invoices    services.InvoiceGenerator
	Mailer      services.OrderMailer
	OrderEvents services.OrderEventPublisher
	StockEvents services.StockEventPublisher
	// Counters is optional; when nil a counter service is built from the
	// registry's counter repository.
	Counters    services.CounterService
	Build       services.BuildInfo
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and supporting infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependency graph. Optional integrations
// (payments, mail, events) may be nil; the owning services degrade gracefully.
func NewContainer(ctx context.Context, cfg config.Config, deps ContainerDeps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("di: repository registry is required")
	}

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources held by the repository layer.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps ContainerDeps) (Services, error) {
	reg := deps.Registry

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	var svc Services

	pricing, err := services.NewStandardPricingEngine(services.StandardPricingEngineDeps{
		Clock:  clock,
		Logger: logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	svc.Pricing = pricing

	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: reg.Inventory(),
		Events:    deps.StockEvents,
		Clock:     clock,
		Logger:    logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventory

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog: reg.Catalog(),
		Clock:   clock,
		Logger:  logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalog

	coupons, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: reg.Coupons(),
		Clock:   clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = coupons

	addresses, err := services.NewAddressService(services.AddressServiceDeps{
		Repository: reg.Addresses(),
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build address service: %w", err)
	}
	svc.Addresses = addresses

	cart, err := services.NewCartService(services.CartServiceDeps{
		Repository: reg.Carts(),
		Catalog:    reg.Catalog(),
		Inventory:  svc.Inventory,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	wishlist, err := services.NewWishlistService(services.WishlistServiceDeps{
		Repository: reg.Wishlists(),
		Catalog:    reg.Catalog(),
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build wishlist service: %w", err)
	}
	svc.Wishlist = wishlist

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Catalog:    reg.Catalog(),
		Coupons:    reg.Coupons(),
		Addresses:  reg.Addresses(),
		Carts:      reg.Carts(),
		Inventory:  svc.Inventory,
		Pricing:    svc.Pricing,
		Payments:   deps.Payments,
		Invoices:   deps.Invoices,
		Mailer:     deps.Mailer,
		Events:     deps.OrderEvents,
		UnitOfWork: reg,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	if deps.Counters != nil {
		svc.Counters = deps.Counters
	} else {
		counters, err := services.NewCounterService(services.CounterServiceDeps{
			Repository: reg.Counters(),
			Clock:      clock,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build counter service: %w", err)
		}
		svc.Counters = counters
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            deps.Build,
			Counters:         svc.Counters,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
