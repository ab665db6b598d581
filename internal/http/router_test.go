package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_pickup/internal/cache"
	"github.com/fjod/go_pickup/internal/domain"
	"github.com/fjod/go_pickup/internal/repository"
	"github.com/fjod/go_pickup/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T) (*httptest.Server, *testClock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &testClock{now: orderCreatedAt}
	menu := testMenu()
	orders := service.NewOrderService(repository.NewMemoryStore(), menu, service.Options{Now: clock.Now})
	drafts := service.NewDraftService(cache.NewRedisDraftCache(client, cache.DefaultDraftTTL), menu, orders)

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Orders:         orders,
		Drafts:         drafts,
		Catalog:        menu,
		RequestTimeout: 5 * time.Second,
	}))
	t.Cleanup(srv.Close)
	return srv, clock
}

func do(t *testing.T, srv *httptest.Server, method, path, customer, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if customer != "" {
		req.Header.Set(CustomerIDHeader, customer)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeOrder(t *testing.T, resp *http.Response) OrderDTO {
	t.Helper()
	var dto OrderDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	return dto
}

const bobaBody = `{"product_id":1,"size":"medium","sugar_level":"50%","ice_level":"less","add_on_ids":[1],"quantity":1}`

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, "GET", "/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_DraftCheckoutAndRedeem(t *testing.T) {
	srv, clock := newTestServer(t)

	resp := do(t, srv, "PUT", "/api/v1/drafts/items", "alice", bobaBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item: expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp = do(t, srv, "POST", "/api/v1/drafts/checkout", "alice", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout: expected %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	order := decodeOrder(t, resp)
	if order.Total.String() != "5.50" {
		t.Errorf("expected total 5.50, got %s", order.Total)
	}
	if order.QRToken == "" {
		t.Fatal("expected pickup token")
	}

	resp = do(t, srv, "GET", "/api/v1/drafts", "alice", "")
	var draft DraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if len(draft.Lines) != 0 {
		t.Errorf("draft should be cleared after checkout, got %d lines", len(draft.Lines))
	}

	resp = do(t, srv, "GET", "/api/v1/orders/"+order.ID+"/qr", "bob", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("other customers must not see the code, got %d", resp.StatusCode)
	}

	clock.Advance(10 * time.Minute)
	resp = do(t, srv, "POST", "/api/v1/verify", "", `{"token":"`+order.QRToken+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if got := decodeOrder(t, resp); got.Status != "completed" || got.PickupTime == nil {
		t.Errorf("expected completed with pickup time, got %+v", got)
	}

	clock.Advance(time.Minute)
	resp = do(t, srv, "POST", "/api/v1/verify", "", `{"token":"`+order.QRToken+`"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second verify: expected %d, got %d", http.StatusConflict, resp.StatusCode)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Order == nil || errResp.Order.PickupTime == nil {
		t.Fatalf("expected completed snapshot, got %+v", errResp.Order)
	}
	if !errResp.Order.PickupTime.Equal(orderCreatedAt.Add(10 * time.Minute)) {
		t.Errorf("expected pickup at T+10, got %s", errResp.Order.PickupTime)
	}
}

func TestRouter_VerifyAfterWindow(t *testing.T) {
	srv, clock := newTestServer(t)

	resp := do(t, srv, "POST", "/api/v1/orders", "alice", `{"items":[`+bobaBody+`]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	order := decodeOrder(t, resp)

	clock.Advance(domain.DefaultPickupWindow + time.Minute)
	resp = do(t, srv, "POST", "/api/v1/verify", "", `{"token":"`+order.QRToken+`"}`)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected %d, got %d", http.StatusGone, resp.StatusCode)
	}

	resp = do(t, srv, "GET", "/api/v1/orders/"+order.ID, "alice", "")
	if got := decodeOrder(t, resp); got.Status != "no-show" {
		t.Errorf("expected no-show, got %s", got.Status)
	}
}

func TestRouter_CancelThenVerify(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, "POST", "/api/v1/orders", "alice", `{"items":[`+bobaBody+`]}`)
	order := decodeOrder(t, resp)

	resp = do(t, srv, "POST", "/api/v1/orders/"+order.ID+"/cancel", "bob", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("non-owner cancel: expected %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	resp = do(t, srv, "POST", "/api/v1/orders/"+order.ID+"/cancel", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp = do(t, srv, "POST", "/api/v1/verify", "", `{"token":"`+order.QRToken+`"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("verify cancelled: expected %d, got %d", http.StatusConflict, resp.StatusCode)
	}
}
