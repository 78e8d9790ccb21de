package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"

	domain "github.com/vastrakart/api/internal/domain"
	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
	"github.com/vastrakart/api/internal/repositories"
)

const couponsCollection = "coupons"

// CouponRepository persists coupon definitions keyed by normalised code.
type CouponRepository struct {
	provider *pfirestore.Provider
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{provider: provider}, nil
}

// FindByCode fetches the coupon for a code, case-insensitively.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Coupon{}, err
	}
	normalised, err := normaliseCouponCode(code)
	if err != nil {
		return domain.Coupon{}, err
	}

	snap, err := coll.Doc(normalised).Get(ctx)
	if err != nil {
		return domain.Coupon{}, pfirestore.WrapError("coupons.findByCode", err)
	}
	return decodeCoupon(snap)
}

// Upsert stores the coupon under its normalised code, overwriting any
// existing definition for that code.
func (r *CouponRepository) Upsert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Coupon{}, err
	}
	normalised, err := normaliseCouponCode(coupon.Code)
	if err != nil {
		return domain.Coupon{}, err
	}
	switch coupon.Type {
	case domain.CouponTypePercentage, domain.CouponTypeFixed:
	default:
		return domain.Coupon{}, fmt.Errorf("coupon repository: unknown coupon type %q", coupon.Type)
	}

	doc := newCouponDocument(coupon, normalised)
	if _, err := coll.Doc(normalised).Set(ctx, doc); err != nil {
		return domain.Coupon{}, pfirestore.WrapError("coupons.upsert", err)
	}

	saved := coupon
	saved.ID = normalised
	saved.Code = normalised
	saved.CreatedAt = doc.CreatedAt
	return saved, nil
}

// Delete removes the coupon document.
func (r *CouponRepository) Delete(ctx context.Context, couponID string) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	normalised, err := normaliseCouponCode(couponID)
	if err != nil {
		return err
	}
	if _, err := coll.Doc(normalised).Delete(ctx); err != nil {
		return pfirestore.WrapError("coupons.delete", err)
	}
	return nil
}

// List returns coupons newest first with offset pagination.
func (r *CouponRepository) List(ctx context.Context, pager domain.Pagination) (domain.Page[domain.Coupon], error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Page[domain.Coupon]{}, err
	}

	page := pager.Page
	if page <= 0 {
		page = 1
	}
	limit := pager.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	total, err := r.countCoupons(ctx, coll.Query)
	if err != nil {
		return domain.Page[domain.Coupon]{}, err
	}

	iter := coll.OrderBy("createdAt", firestore.Desc).
		Offset((page - 1) * limit).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var coupons []domain.Coupon
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.Page[domain.Coupon]{}, pfirestore.WrapError("coupons.list", err)
		}
		coupon, err := decodeCoupon(snap)
		if err != nil {
			return domain.Page[domain.Coupon]{}, err
		}
		coupons = append(coupons, coupon)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return domain.Page[domain.Coupon]{
		Items:      coupons,
		Page:       page,
		Limit:      limit,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

func (r *CouponRepository) countCoupons(ctx context.Context, query firestore.Query) (int64, error) {
	results, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("coupons.count", err)
	}
	value, ok := results["total"]
	if !ok {
		return 0, errors.New("coupon repository: count aggregation missing")
	}
	count, ok := value.(*firestorepb.Value)
	if !ok {
		return 0, errors.New("coupon repository: unexpected count aggregation type")
	}
	return count.GetIntegerValue(), nil
}

func (r *CouponRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("coupon repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(couponsCollection), nil
}

func normaliseCouponCode(code string) (string, error) {
	normalised := strings.ToUpper(strings.TrimSpace(code))
	if normalised == "" {
		return "", errors.New("coupon repository: code is required")
	}
	if strings.ContainsAny(normalised, "/ ") {
		return "", fmt.Errorf("coupon repository: invalid code %q", code)
	}
	return normalised, nil
}

type couponDocument struct {
	Code          string     `firestore:"code"`
	Type          string     `firestore:"type"`
	Value         float64    `firestore:"value"`
	MinOrderValue *float64   `firestore:"minOrderValue,omitempty"`
	ExpiresAt     *time.Time `firestore:"expiresAt,omitempty"`
	IsActive      bool       `firestore:"isActive"`
	CreatedAt     time.Time  `firestore:"createdAt"`
}

func newCouponDocument(coupon domain.Coupon, normalisedCode string) couponDocument {
	createdAt := coupon.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	doc := couponDocument{
		Code:      normalisedCode,
		Type:      string(coupon.Type),
		Value:     coupon.Value,
		IsActive:  coupon.IsActive,
		CreatedAt: createdAt,
	}
	if coupon.MinOrderValue != nil {
		v := *coupon.MinOrderValue
		doc.MinOrderValue = &v
	}
	if coupon.ExpiresAt != nil {
		t := coupon.ExpiresAt.UTC()
		doc.ExpiresAt = &t
	}
	return doc
}

func decodeCoupon(snap *firestore.DocumentSnapshot) (domain.Coupon, error) {
	var doc couponDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Coupon{}, fmt.Errorf("decode coupon %s: %w", snap.Ref.ID, err)
	}
	coupon := domain.Coupon{
		ID:            snap.Ref.ID,
		Code:          doc.Code,
		Type:          domain.CouponType(doc.Type),
		Value:         doc.Value,
		MinOrderValue: doc.MinOrderValue,
		ExpiresAt:     doc.ExpiresAt,
		IsActive:      doc.IsActive,
		CreatedAt:     doc.CreatedAt,
	}
	if coupon.Code == "" {
		coupon.Code = snap.Ref.ID
	}
	return coupon, nil
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)
