package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vastrakart/api/internal/repositories"
)

var (
	// ErrAddressInvalidInput indicates the caller supplied invalid address data.
	ErrAddressInvalidInput = errors.New("address: invalid input")
	// ErrAddressNotFound indicates the requested address book entry does not exist.
	ErrAddressNotFound = errors.New("address: not found")
)

// AddressServiceDeps bundles collaborators required to construct an address service.
type AddressServiceDeps struct {
	Repository  repositories.AddressRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type addressService struct {
	repo  repositories.AddressRepository
	clock func() time.Time
	newID func() string
}

var _ AddressService = (*addressService)(nil)

// NewAddressService constructs the per-user address book service.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.Repository == nil {
		return nil, errors.New("address service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}

	return &addressService{
		repo: deps.Repository,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: newID,
	}, nil
}

func (s *addressService) ListAddresses(ctx context.Context, userID string) ([]UserAddress, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrAddressInvalidInput)
	}

	addresses, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return addresses, nil
}

func (s *addressService) GetAddress(ctx context.Context, userID, addressID string) (UserAddress, error) {
	userID = strings.TrimSpace(userID)
	addressID = strings.TrimSpace(addressID)
	if userID == "" || addressID == "" {
		return UserAddress{}, fmt.Errorf("%w: user id and address id are required", ErrAddressInvalidInput)
	}

	address, err := s.repo.Get(ctx, userID, addressID)
	if err != nil {
		return UserAddress{}, s.translateRepoError(err)
	}
	return address, nil
}

func (s *addressService) AddAddress(ctx context.Context, cmd AddAddressCommand) (UserAddress, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserAddress{}, fmt.Errorf("%w: user id is required", ErrAddressInvalidInput)
	}
	if err := validatePostalAddress(cmd.Address); err != nil {
		return UserAddress{}, err
	}

	entry := UserAddress{
		ID:        "adr_" + s.newID(),
		UserID:    userID,
		Address:   cmd.Address,
		IsDefault: cmd.IsDefault,
		CreatedAt: s.clock(),
	}

	inserted, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return UserAddress{}, s.translateRepoError(err)
	}

	if cmd.IsDefault {
		if promoted, err := s.repo.SetDefault(ctx, userID, inserted.ID); err == nil {
			return promoted, nil
		}
	}
	return inserted, nil
}

func (s *addressService) DeleteAddress(ctx context.Context, userID, addressID string) error {
	userID = strings.TrimSpace(userID)
	addressID = strings.TrimSpace(addressID)
	if userID == "" || addressID == "" {
		return fmt.Errorf("%w: user id and address id are required", ErrAddressInvalidInput)
	}

	if err := s.repo.Delete(ctx, userID, addressID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *addressService) SetDefaultAddress(ctx context.Context, userID, addressID string) error {
	userID = strings.TrimSpace(userID)
	addressID = strings.TrimSpace(addressID)
	if userID == "" || addressID == "" {
		return fmt.Errorf("%w: user id and address id are required", ErrAddressInvalidInput)
	}

	if _, err := s.repo.SetDefault(ctx, userID, addressID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func validatePostalAddress(addr Address) error {
	if strings.TrimSpace(addr.Name) == "" {
		return fmt.Errorf("%w: recipient name is required", ErrAddressInvalidInput)
	}
	if strings.TrimSpace(addr.Line1) == "" {
		return fmt.Errorf("%w: address line is required", ErrAddressInvalidInput)
	}
	if strings.TrimSpace(addr.City) == "" {
		return fmt.Errorf("%w: city is required", ErrAddressInvalidInput)
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		return fmt.Errorf("%w: postal code is required", ErrAddressInvalidInput)
	}
	return nil
}

func (s *addressService) translateRepoError(err error) error {
	if isRepoNotFound(err) {
		return fmt.Errorf("%w: %v", ErrAddressNotFound, err)
	}
	return err
}
