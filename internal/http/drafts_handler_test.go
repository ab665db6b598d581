package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
)

type DraftServiceMock struct {
	draft     *domain.Draft
	order     *domain.Order
	err       error
	gotLine   domain.CartLine
	discarded string
}

func (m *DraftServiceMock) GetDraft(_ context.Context, customerID string) (*domain.Draft, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.draft == nil {
		return &domain.Draft{CustomerID: customerID}, nil
	}
	return m.draft, nil
}

func (m *DraftServiceMock) AddLine(_ context.Context, customerID string, line domain.CartLine) (*domain.Draft, error) {
	m.gotLine = line
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Draft{CustomerID: customerID, Lines: []domain.CartLine{line}, UpdatedAt: orderCreatedAt}, nil
}

func (m *DraftServiceMock) DiscardDraft(_ context.Context, customerID string) error {
	m.discarded = customerID
	return m.err
}

func (m *DraftServiceMock) Checkout(_ context.Context, _ string) (*domain.Order, error) {
	return m.order, m.err
}

func TestGetDraft_Empty(t *testing.T) {
	handler := NewDraftsHandler(&DraftServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withCustomer(httptest.NewRequest("GET", "/api/v1/drafts", nil), "alice")

	handler.GetDraft(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	var response DraftResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.CustomerID != "alice" || len(response.Lines) != 0 {
		t.Errorf("expected empty draft for alice, got %+v", response)
	}
	if response.UpdatedAt != nil {
		t.Error("empty draft should not carry updated_at")
	}
}

func TestGetDraft_Unauthorized(t *testing.T) {
	handler := NewDraftsHandler(&DraftServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.GetDraft(recorder, httptest.NewRequest("GET", "/api/v1/drafts", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestAddItem_Success(t *testing.T) {
	mock := &DraftServiceMock{}
	handler := NewDraftsHandler(mock, 5*time.Second)

	body := `{"product_id":4,"size":"medium","sugar_level":"0%","ice_level":"none","quantity":1}`
	recorder := httptest.NewRecorder()
	request := withCustomer(httptest.NewRequest("PUT", "/api/v1/drafts/items", strings.NewReader(body)), "alice")

	handler.AddItem(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, recorder.Code, recorder.Body.String())
	}
	if mock.gotLine.ProductID != 4 || mock.gotLine.Customization.IceLevel != domain.IceNone {
		t.Errorf("unexpected line forwarded: %+v", mock.gotLine)
	}
}

func TestAddItem_UnknownField(t *testing.T) {
	handler := NewDraftsHandler(&DraftServiceMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withCustomer(httptest.NewRequest("PUT", "/api/v1/drafts/items", strings.NewReader(`{"price":"0.01"}`)), "alice")

	handler.AddItem(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	mock := &DraftServiceMock{err: fmt.Errorf("%w: product 99", domain.ErrNotFound)}
	handler := NewDraftsHandler(mock, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withCustomer(httptest.NewRequest("PUT", "/api/v1/drafts/items", strings.NewReader(`{"product_id":99,"quantity":1}`)), "alice")

	handler.AddItem(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected %d, got %d", http.StatusNotFound, recorder.Code)
	}
}

func TestDiscard(t *testing.T) {
	mock := &DraftServiceMock{}
	handler := NewDraftsHandler(mock, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withCustomer(httptest.NewRequest("DELETE", "/api/v1/drafts", nil), "alice")

	handler.Discard(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if mock.discarded != "alice" {
		t.Errorf("expected alice's draft discarded, got '%s'", mock.discarded)
	}
}

func TestCheckout_Success(t *testing.T) {
	mock := &DraftServiceMock{order: sampleOrder(domain.OrderStatusPending)}
	handler := NewDraftsHandler(mock, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withCustomer(httptest.NewRequest("POST", "/api/v1/drafts/checkout", nil), "alice")

	handler.Checkout(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, recorder.Code)
	}
	var response OrderDTO
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.QRToken != "secret-token" {
		t.Errorf("expected token in checkout response, got '%s'", response.QRToken)
	}
}

func TestCheckout_StoreUnavailable(t *testing.T) {
	mock := &DraftServiceMock{err: fmt.Errorf("%w: timeout", domain.ErrInternal)}
	handler := NewDraftsHandler(mock, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withCustomer(httptest.NewRequest("POST", "/api/v1/drafts/checkout", nil), "alice")

	handler.Checkout(recorder, request)

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("expected %d, got %d", http.StatusServiceUnavailable, recorder.Code)
	}
}
