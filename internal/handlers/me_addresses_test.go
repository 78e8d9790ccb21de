package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

type stubAddressService struct {
	listFn       func(context.Context, string) ([]services.UserAddress, error)
	getFn        func(context.Context, string, string) (services.UserAddress, error)
	addFn        func(context.Context, services.AddAddressCommand) (services.UserAddress, error)
	deleteFn     func(context.Context, string, string) error
	setDefaultFn func(context.Context, string, string) error
}

func (s *stubAddressService) ListAddresses(ctx context.Context, userID string) ([]services.UserAddress, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (s *stubAddressService) GetAddress(ctx context.Context, userID, addressID string) (services.UserAddress, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID, addressID)
	}
	return services.UserAddress{}, errors.New("not implemented")
}

func (s *stubAddressService) AddAddress(ctx context.Context, cmd services.AddAddressCommand) (services.UserAddress, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.UserAddress{}, errors.New("not implemented")
}

func (s *stubAddressService) DeleteAddress(ctx context.Context, userID, addressID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, userID, addressID)
	}
	return errors.New("not implemented")
}

func (s *stubAddressService) SetDefaultAddress(ctx context.Context, userID, addressID string) error {
	if s.setDefaultFn != nil {
		return s.setDefaultFn(ctx, userID, addressID)
	}
	return errors.New("not implemented")
}

func meRouter(addresses services.AddressService, wishlist services.WishlistService) http.Handler {
	handler := NewMeHandlers(nil, addresses, wishlist)
	router := chi.NewRouter()
	router.Route("/me", handler.Routes)
	return router
}

func sampleUserAddress(now time.Time) services.UserAddress {
	return services.UserAddress{
		ID:     "adr_1",
		UserID: "user-1",
		Address: domain.Address{
			Name:       "Asha Rao",
			Line1:      "12 MG Road",
			City:       "Bengaluru",
			State:      "KA",
			PostalCode: "560001",
			Country:    "IN",
		},
		IsDefault: true,
		CreatedAt: now,
	}
}

func TestMeHandlersGetProfile(t *testing.T) {
	rr := httptest.NewRecorder()
	meRouter(nil, nil).ServeHTTP(rr, authedRequest(http.MethodGet, "/me/", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp profilePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.UID != "user-1" {
		t.Fatalf("expected uid user-1, got %s", resp.UID)
	}
}

func TestMeHandlersListAddresses(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	service := &stubAddressService{
		listFn: func(_ context.Context, userID string) ([]services.UserAddress, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %s", userID)
			}
			return []services.UserAddress{sampleUserAddress(now)}, nil
		},
	}

	rr := httptest.NewRecorder()
	meRouter(service, nil).ServeHTTP(rr, authedRequest(http.MethodGet, "/me/addresses/", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp []userAddressPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "adr_1" || !resp[0].IsDefault {
		t.Fatalf("unexpected address list %#v", resp)
	}
	if resp[0].Address.City != "Bengaluru" {
		t.Fatalf("unexpected address payload %#v", resp[0].Address)
	}
}

func TestMeHandlersCreateAddress(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	var captured services.AddAddressCommand
	service := &stubAddressService{
		addFn: func(_ context.Context, cmd services.AddAddressCommand) (services.UserAddress, error) {
			captured = cmd
			entry := sampleUserAddress(now)
			entry.Address = cmd.Address
			entry.IsDefault = cmd.IsDefault
			return entry, nil
		},
	}

	rr := httptest.NewRecorder()
	body := `{"address":{"name":"Asha Rao","line1":"12 MG Road","city":"Bengaluru","state":"KA","postal_code":"560001","country":"in"},"is_default":true}`
	meRouter(service, nil).ServeHTTP(rr, authedRequest(http.MethodPost, "/me/addresses/", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-1" || !captured.IsDefault {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.Address.Country != "IN" {
		t.Fatalf("expected country uppercased, got %s", captured.Address.Country)
	}
	if location := rr.Header().Get("Location"); location != "/me/addresses/adr_1" {
		t.Fatalf("unexpected location header %q", location)
	}
}

func TestMeHandlersCreateAddressValidation(t *testing.T) {
	var addCalled bool
	service := &stubAddressService{
		addFn: func(context.Context, services.AddAddressCommand) (services.UserAddress, error) {
			addCalled = true
			return services.UserAddress{}, nil
		},
	}

	rr := httptest.NewRecorder()
	body := `{"address":{"name":"","line1":"12 MG Road","city":"Bengaluru","postal_code":"560001"}}`
	meRouter(service, nil).ServeHTTP(rr, authedRequest(http.MethodPost, "/me/addresses/", body))

	if addCalled {
		t.Fatal("expected request to be rejected before the service")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMeHandlersGetAddressNotFound(t *testing.T) {
	service := &stubAddressService{
		getFn: func(context.Context, string, string) (services.UserAddress, error) {
			return services.UserAddress{}, services.ErrAddressNotFound
		},
	}

	rr := httptest.NewRecorder()
	meRouter(service, nil).ServeHTTP(rr, authedRequest(http.MethodGet, "/me/addresses/adr_404", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestMeHandlersDeleteAddress(t *testing.T) {
	var deleted string
	service := &stubAddressService{
		deleteFn: func(_ context.Context, userID, addressID string) error {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %s", userID)
			}
			deleted = addressID
			return nil
		},
	}

	rr := httptest.NewRecorder()
	meRouter(service, nil).ServeHTTP(rr, authedRequest(http.MethodDelete, "/me/addresses/adr_1", ""))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if deleted != "adr_1" {
		t.Fatalf("expected adr_1 deleted, got %q", deleted)
	}
}

func TestMeHandlersSetDefaultAddress(t *testing.T) {
	var promoted string
	service := &stubAddressService{
		setDefaultFn: func(_ context.Context, userID, addressID string) error {
			promoted = addressID
			return nil
		},
	}

	rr := httptest.NewRecorder()
	meRouter(service, nil).ServeHTTP(rr, authedRequest(http.MethodPost, "/me/addresses/adr_2:default", ""))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if promoted != "adr_2" {
		t.Fatalf("expected adr_2 promoted, got %q", promoted)
	}
}
