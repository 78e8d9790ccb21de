package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
)

func newTestCouponService(t *testing.T, repo *stubCouponRepo, now time.Time) CouponService {
	t.Helper()
	svc, err := NewCouponService(CouponServiceDeps{
		Coupons:     repo,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "01TESTULID" },
	})
	if err != nil {
		t.Fatalf("new coupon service: %v", err)
	}
	return svc
}

func TestCouponServiceGetCouponNormalisesCode(t *testing.T) {
	ctx := context.Background()
	repo := &stubCouponRepo{coupons: map[string]domain.Coupon{
		"TEN": {ID: "cpn-1", Code: "TEN", Type: domain.CouponTypePercentage, Value: 10, IsActive: true},
	}}
	svc := newTestCouponService(t, repo, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))

	coupon, err := svc.GetCoupon(ctx, "  ten ")
	if err != nil {
		t.Fatalf("get coupon: %v", err)
	}
	if coupon.Code != "TEN" {
		t.Fatalf("expected TEN got %s", coupon.Code)
	}

	if _, err := svc.GetCoupon(ctx, "NOPE"); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound got %v", err)
	}
	if _, err := svc.GetCoupon(ctx, "   "); !errors.Is(err, ErrCouponInvalidInput) {
		t.Fatalf("expected ErrCouponInvalidInput got %v", err)
	}
}

func TestCouponServiceValidateCoupons(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	minOrder := 2000.0
	repo := &stubCouponRepo{coupons: map[string]domain.Coupon{
		"TEN":    {ID: "cpn-1", Code: "TEN", Type: domain.CouponTypePercentage, Value: 10, IsActive: true},
		"FLAT50": {ID: "cpn-2", Code: "FLAT50", Type: domain.CouponTypeFixed, Value: 50, IsActive: true},
		"OLD":    {ID: "cpn-3", Code: "OLD", Type: domain.CouponTypeFixed, Value: 50, IsActive: true, ExpiresAt: &expired},
		"OFF":    {ID: "cpn-4", Code: "OFF", Type: domain.CouponTypeFixed, Value: 50},
		"BULK":   {ID: "cpn-5", Code: "BULK", Type: domain.CouponTypeFixed, Value: 50, IsActive: true, MinOrderValue: &minOrder},
	}}
	svc := newTestCouponService(t, repo, now)

	coupons, err := svc.ValidateCoupons(ctx, ValidateCouponsCommand{
		Codes:    []string{"ten", "FLAT50"},
		Subtotal: 1000,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(coupons) != 2 {
		t.Fatalf("expected 2 coupons got %d", len(coupons))
	}

	cases := []struct {
		name  string
		codes []string
	}{
		{name: "expired", codes: []string{"OLD"}},
		{name: "inactive", codes: []string{"OFF"}},
		{name: "below minimum", codes: []string{"BULK"}},
		{name: "duplicate", codes: []string{"TEN", "ten"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.ValidateCoupons(ctx, ValidateCouponsCommand{
				Codes:    tc.codes,
				Subtotal: 1000,
			}); !errors.Is(err, ErrCouponNotEligible) {
				t.Fatalf("expected ErrCouponNotEligible got %v", err)
			}
		})
	}

	if _, err := svc.ValidateCoupons(ctx, ValidateCouponsCommand{
		Codes:    []string{"TEN"},
		Subtotal: -1,
	}); !errors.Is(err, ErrCouponInvalidInput) {
		t.Fatalf("expected ErrCouponInvalidInput got %v", err)
	}
}

func TestCouponServiceUpsertCoupon(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	repo := &stubCouponRepo{coupons: map[string]domain.Coupon{}}
	svc := newTestCouponService(t, repo, now)

	coupon, err := svc.UpsertCoupon(ctx, UpsertCouponCommand{
		Coupon: domain.Coupon{Code: " festive10 ", Type: domain.CouponTypePercentage, Value: 10, IsActive: true},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if coupon.Code != "FESTIVE10" {
		t.Fatalf("expected code uppercased got %s", coupon.Code)
	}
	if !strings.HasPrefix(coupon.ID, "cpn_") {
		t.Fatalf("expected generated id prefix cpn_ got %s", coupon.ID)
	}
	if !coupon.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt backfilled got %s", coupon.CreatedAt)
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("expected repository upsert got %d", len(repo.upserted))
	}

	invalid := []struct {
		name   string
		coupon domain.Coupon
	}{
		{name: "blank code", coupon: domain.Coupon{Type: domain.CouponTypeFixed, Value: 10}},
		{name: "percentage over 100", coupon: domain.Coupon{Code: "X", Type: domain.CouponTypePercentage, Value: 120}},
		{name: "negative fixed", coupon: domain.Coupon{Code: "X", Type: domain.CouponTypeFixed, Value: -5}},
		{name: "unknown type", coupon: domain.Coupon{Code: "X", Type: domain.CouponType("BOGO"), Value: 1}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpsertCoupon(ctx, UpsertCouponCommand{Coupon: tc.coupon}); !errors.Is(err, ErrCouponInvalidInput) {
				t.Fatalf("expected ErrCouponInvalidInput got %v", err)
			}
		})
	}
}

func TestCouponServiceDeleteCoupon(t *testing.T) {
	ctx := context.Background()
	repo := &stubCouponRepo{coupons: map[string]domain.Coupon{
		"TEN": {ID: "cpn-1", Code: "TEN", Type: domain.CouponTypePercentage, Value: 10},
	}}
	svc := newTestCouponService(t, repo, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))

	if err := svc.DeleteCoupon(ctx, "ten"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "cpn-1" {
		t.Fatalf("expected delete by coupon id got %#v", repo.deleted)
	}

	if err := svc.DeleteCoupon(ctx, "NOPE"); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound got %v", err)
	}
}
