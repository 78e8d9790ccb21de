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

const addressCollectionPattern = "users/%s/addresses"

// AddressRepository persists user shipping addresses in Firestore.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// List returns all addresses for the specified user, default first.
func (r *AddressRepository) List(ctx context.Context, userID string) ([]domain.UserAddress, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var results []domain.UserAddress
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("addresses.list", err)
		}
		addr, err := decodeUserAddress(snap, userID)
		if err != nil {
			return nil, err
		}
		if addr.IsDefault {
			results = append([]domain.UserAddress{addr}, results...)
		} else {
			results = append(results, addr)
		}
	}
	return results, nil
}

// Get fetches a single address owned by the user.
func (r *AddressRepository) Get(ctx context.Context, userID string, addressID string) (domain.UserAddress, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.UserAddress{}, err
	}
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return domain.UserAddress{}, errors.New("address repository: address id is required")
	}
	snap, err := coll.Doc(addressID).Get(ctx)
	if err != nil {
		return domain.UserAddress{}, pfirestore.WrapError("addresses.get", err)
	}
	return decodeUserAddress(snap, userID)
}

// Insert stores a new address. The first address for a user becomes default.
func (r *AddressRepository) Insert(ctx context.Context, addr domain.UserAddress) (domain.UserAddress, error) {
	coll, err := r.collection(ctx, addr.UserID)
	if err != nil {
		return domain.UserAddress{}, err
	}
	id := strings.TrimSpace(addr.ID)
	if id == "" {
		return domain.UserAddress{}, errors.New("address repository: address id is required")
	}

	existing, err := r.List(ctx, addr.UserID)
	if err != nil {
		return domain.UserAddress{}, err
	}
	if len(existing) == 0 {
		addr.IsDefault = true
	}

	doc := newUserAddressDocument(addr)
	if _, err := coll.Doc(id).Create(ctx, doc); err != nil {
		return domain.UserAddress{}, pfirestore.WrapError("addresses.insert", err)
	}
	saved := addr
	saved.ID = id
	return saved, nil
}

// Delete removes the address document.
func (r *AddressRepository) Delete(ctx context.Context, userID string, addressID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return errors.New("address repository: address id is required")
	}
	if _, err := coll.Doc(addressID).Delete(ctx); err != nil {
		return pfirestore.WrapError("addresses.delete", err)
	}
	return nil
}

// SetDefault marks one address as default and clears the flag on the rest.
func (r *AddressRepository) SetDefault(ctx context.Context, userID string, addressID string) (domain.UserAddress, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.UserAddress{}, err
	}
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return domain.UserAddress{}, errors.New("address repository: address id is required")
	}

	var updated domain.UserAddress
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(coll).GetAll()
		if err != nil {
			return err
		}
		found := false
		for _, snap := range snaps {
			isTarget := snap.Ref.ID == addressID
			if isTarget {
				found = true
			}
			if err := tx.Update(snap.Ref, []firestore.Update{{Path: "isDefault", Value: isTarget}}); err != nil {
				return err
			}
			if isTarget {
				addr, err := decodeUserAddress(snap, userID)
				if err != nil {
					return err
				}
				addr.IsDefault = true
				updated = addr
			}
		}
		if !found {
			return errors.New("address repository: address not found")
		}
		return nil
	})
	if err != nil {
		return domain.UserAddress{}, pfirestore.WrapError("addresses.setDefault", err)
	}
	return updated, nil
}

func (r *AddressRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("address repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("address repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(addressCollectionPattern, uid)), nil
}

type userAddressDocument struct {
	Address   addressDocument `firestore:"address"`
	IsDefault bool            `firestore:"isDefault"`
	CreatedAt time.Time       `firestore:"createdAt"`
}

func newUserAddressDocument(addr domain.UserAddress) userAddressDocument {
	createdAt := addr.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return userAddressDocument{
		Address:   newAddressDocument(addr.Address),
		IsDefault: addr.IsDefault,
		CreatedAt: createdAt,
	}
}

func decodeUserAddress(snap *firestore.DocumentSnapshot, userID string) (domain.UserAddress, error) {
	var doc userAddressDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.UserAddress{}, fmt.Errorf("decode address %s: %w", snap.Ref.ID, err)
	}
	return domain.UserAddress{
		ID:        snap.Ref.ID,
		UserID:    strings.TrimSpace(userID),
		Address:   doc.Address.toDomain(),
		IsDefault: doc.IsDefault,
		CreatedAt: doc.CreatedAt,
	}, nil
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)
