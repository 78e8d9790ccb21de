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
	// ErrCouponInvalidInput indicates the caller supplied invalid coupon data.
	ErrCouponInvalidInput = errors.New("coupon service: invalid input")
	// ErrCouponNotFound indicates the coupon code does not exist.
	ErrCouponNotFound = errors.New("coupon service: not found")
	// ErrCouponNotEligible indicates the coupon exists but cannot be applied.
	ErrCouponNotEligible = errors.New("coupon service: not eligible")
)

// CouponServiceDeps bundles dependencies required to construct a CouponService implementation.
type CouponServiceDeps struct {
	Coupons     repositories.CouponRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type couponService struct {
	repo  repositories.CouponRepository
	clock func() time.Time
	newID func() string
}

// NewCouponService wires a CouponService backed by the provided repository.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &couponService{
		repo:  deps.Coupons,
		clock: func() time.Time { return clock().UTC() },
		newID: idGen,
	}, nil
}

func (s *couponService) GetCoupon(ctx context.Context, code string) (Coupon, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return Coupon{}, fmt.Errorf("%w: coupon code is required", ErrCouponInvalidInput)
	}
	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if isRepoNotFound(err) {
			return Coupon{}, fmt.Errorf("%w: %s", ErrCouponNotFound, normalized)
		}
		return Coupon{}, err
	}
	return coupon, nil
}

// ValidateCoupons resolves every code and checks eligibility against the
// supplied subtotal. All codes must pass; the first failure aborts.
func (s *couponService) ValidateCoupons(ctx context.Context, cmd ValidateCouponsCommand) ([]Coupon, error) {
	if len(cmd.Codes) == 0 {
		return nil, nil
	}
	if cmd.Subtotal < 0 {
		return nil, fmt.Errorf("%w: subtotal cannot be negative", ErrCouponInvalidInput)
	}

	now := s.clock()
	seen := make(map[string]bool, len(cmd.Codes))
	coupons := make([]Coupon, 0, len(cmd.Codes))

	for _, code := range cmd.Codes {
		coupon, err := s.GetCoupon(ctx, code)
		if err != nil {
			return nil, err
		}
		if seen[coupon.Code] {
			return nil, fmt.Errorf("%w: coupon %s applied more than once", ErrCouponNotEligible, coupon.Code)
		}
		seen[coupon.Code] = true

		if !coupon.IsActive {
			return nil, fmt.Errorf("%w: coupon %s is inactive", ErrCouponNotEligible, coupon.Code)
		}
		if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
			return nil, fmt.Errorf("%w: coupon %s expired", ErrCouponNotEligible, coupon.Code)
		}
		if coupon.MinOrderValue != nil && cmd.Subtotal < *coupon.MinOrderValue {
			return nil, fmt.Errorf("%w: coupon %s requires a minimum order of %.2f", ErrCouponNotEligible, coupon.Code, *coupon.MinOrderValue)
		}
		coupons = append(coupons, coupon)
	}
	return coupons, nil
}

func (s *couponService) ListCoupons(ctx context.Context, pager Pagination) (domain.Page[Coupon], error) {
	page, err := s.repo.List(ctx, pager)
	if err != nil {
		return domain.Page[Coupon]{}, err
	}
	return page, nil
}

func (s *couponService) UpsertCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon := cmd.Coupon
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" {
		return Coupon{}, fmt.Errorf("%w: coupon code is required", ErrCouponInvalidInput)
	}
	switch coupon.Type {
	case domain.CouponTypePercentage:
		if coupon.Value < 0 || coupon.Value > 100 {
			return Coupon{}, fmt.Errorf("%w: percentage value out of range", ErrCouponInvalidInput)
		}
	case domain.CouponTypeFixed:
		if coupon.Value < 0 {
			return Coupon{}, fmt.Errorf("%w: fixed value cannot be negative", ErrCouponInvalidInput)
		}
	default:
		return Coupon{}, fmt.Errorf("%w: unknown coupon type %q", ErrCouponInvalidInput, coupon.Type)
	}
	if coupon.MinOrderValue != nil && *coupon.MinOrderValue < 0 {
		return Coupon{}, fmt.Errorf("%w: minimum order value cannot be negative", ErrCouponInvalidInput)
	}
	if strings.TrimSpace(coupon.ID) == "" {
		coupon.ID = "cpn_" + s.newID()
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = s.clock()
	}

	return s.repo.Upsert(ctx, coupon)
}

func (s *couponService) DeleteCoupon(ctx context.Context, code string) error {
	coupon, err := s.GetCoupon(ctx, code)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, coupon.ID)
}
