package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"pharmacart/internal/domain"
	cartsvc "pharmacart/internal/service/cart"
	"github.com/gin-gonic/gin"
)

type stubProducts struct {
	byID map[string]*domain.Product
	err  error
}

func (s *stubProducts) List(_ context.Context) ([]domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Product, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type stubGuests struct {
	token   string
	guestID string
	err     error
}

func (s *stubGuests) Issue() (string, string, error) {
	return s.token, s.guestID, s.err
}

func (s *stubGuests) Lookup(token string) (string, error) {
	if token != s.token {
		return "", errors.New("invalid token")
	}
	return s.guestID, nil
}

func (s *stubGuests) TTLSeconds() int { return 3600 }

type memCartStore struct {
	docs map[string][]domain.CartLine
}

func (m *memCartStore) Load(key string) ([]domain.CartLine, error) {
	return m.docs[key], nil
}

func (m *memCartStore) Save(key string, lines []domain.CartLine) error {
	m.docs[key] = append([]domain.CartLine(nil), lines...)
	return nil
}

func (m *memCartStore) Clear(key string) error {
	delete(m.docs, key)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(_ context.Context, _ cartsvc.Notification) {}

func testProduct(id string, priceCents int64) *domain.Product {
	return &domain.Product{
		ID:         id,
		Name:       "Product " + id,
		PriceCents: priceCents,
		InStock:    true,
	}
}

func testRouter(t *testing.T, products *stubProducts) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := log.New(io.Discard, "", 0)
	store := &memCartStore{docs: make(map[string][]domain.CartLine)}
	factory := func(userID *string, guestKey string) *cartsvc.Service {
		return cartsvc.New(userID, guestKey, nil, store, noopNotifier{}, logger, cartsvc.Options{})
	}
	deps := Deps{
		Registry:       NewCartRegistry(factory, logger),
		Guests:         &stubGuests{token: "tok-1", guestID: "guest-1"},
		Products:       products,
		AllowedOrigins: []string{"*"},
	}
	return buildRouter(logger, nil, deps)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func guestHeaders() map[string]string {
	return map[string]string{"X-Guest-Token": "tok-1"}
}

func TestCartRoutes_RequireIdentity(t *testing.T) {
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{}})

	rec := doJSON(t, router, http.MethodGet, "/api/cart", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/cart", nil, map[string]string{"X-Guest-Token": "bogus"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for bad token, got %d", rec.Code)
	}
}

func TestAddItem_GuestFlow(t *testing.T) {
	products := &stubProducts{byID: map[string]*domain.Product{
		"p1": testProduct("p1", 2500),
	}}
	router := testRouter(t, products)

	rec := doJSON(t, router, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "p1", "quantity": 3}, guestHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Lines) != 1 || resp.Lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines: %+v", resp.Lines)
	}
	if resp.Totals.TotalCents != 7500 {
		t.Fatalf("expected total 7500, got %d", resp.Totals.TotalCents)
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{}})

	rec := doJSON(t, router, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "missing"}, guestHeaders())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestAddItem_OutOfStock(t *testing.T) {
	p := testProduct("p1", 1000)
	p.InStock = false
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{"p1": p}})

	rec := doJSON(t, router, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "p1"}, guestHeaders())
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func TestAddItem_MissingBody(t *testing.T) {
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{}})

	rec := doJSON(t, router, http.MethodPost, "/api/cart/items",
		map[string]any{"quantity": 2}, guestHeaders())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	products := &stubProducts{byID: map[string]*domain.Product{
		"p1": testProduct("p1", 2500),
	}}
	router := testRouter(t, products)

	rec := doJSON(t, router, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "p1", "quantity": 2}, guestHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected status 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPatch, "/api/cart/items/p1",
		map[string]any{"quantity": 0}, guestHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected status 200, got %d", rec.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(resp.Lines))
	}
	if resp.Totals.TotalCents != 0 {
		t.Fatalf("expected total 0, got %d", resp.Totals.TotalCents)
	}
}

func TestApplyDiscount_RejectsNegative(t *testing.T) {
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{}})

	rec := doJSON(t, router, http.MethodPost, "/api/cart/discount",
		map[string]any{"amountCents": -500}, guestHeaders())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestApplyDiscount_ReflectedInTotals(t *testing.T) {
	products := &stubProducts{byID: map[string]*domain.Product{
		"p1": testProduct("p1", 2500),
	}}
	router := testRouter(t, products)

	doJSON(t, router, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "p1", "quantity": 3}, guestHeaders())
	rec := doJSON(t, router, http.MethodPost, "/api/cart/discount",
		map[string]any{"amountCents": 1000}, guestHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Totals.TotalCents != 6500 {
		t.Fatalf("expected total 6500, got %d", resp.Totals.TotalCents)
	}
}

func TestToggleCart_FlipsOpenFlag(t *testing.T) {
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{}})

	rec := doJSON(t, router, http.MethodPost, "/api/cart/toggle", nil, guestHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.IsOpen {
		t.Fatalf("expected cart open after toggle")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/cart/open",
		map[string]any{"open": false}, guestHeaders())
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsOpen {
		t.Fatalf("expected cart closed after explicit open=false")
	}
}

func TestClearCart_EmptiesLines(t *testing.T) {
	products := &stubProducts{byID: map[string]*domain.Product{
		"p1": testProduct("p1", 2500),
	}}
	router := testRouter(t, products)

	doJSON(t, router, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "p1"}, guestHeaders())
	rec := doJSON(t, router, http.MethodDelete, "/api/cart", nil, guestHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(resp.Lines))
	}
}

func TestPrescriptionAck_SetsFlag(t *testing.T) {
	p := testProduct("p1", 4200)
	p.RequiresPrescription = true
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{"p1": p}})

	doJSON(t, router, http.MethodPost, "/api/cart/items",
		map[string]any{"productId": "p1"}, guestHeaders())
	rec := doJSON(t, router, http.MethodPost, "/api/cart/items/p1/prescription-ack", nil, guestHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Lines) != 1 || !resp.Lines[0].PrescriptionAcknowledged {
		t.Fatalf("expected acknowledged line, got %+v", resp.Lines)
	}
}

func TestCreateGuestSession(t *testing.T) {
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{}})

	rec := doJSON(t, router, http.MethodPost, "/api/guest-sessions", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	var resp struct {
		Token   string `json:"token"`
		GuestID string `json:"guestId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "tok-1" || resp.GuestID != "guest-1" {
		t.Fatalf("unexpected session payload: %+v", resp)
	}
}

func TestListProducts(t *testing.T) {
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{
		"p1": testProduct("p1", 1000),
	}})

	rec := doJSON(t, router, http.MethodGet, "/api/products", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	router := testRouter(t, &stubProducts{byID: map[string]*domain.Product{}})

	rec := doJSON(t, router, http.MethodGet, "/api/products/missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestAuthenticatedIdentity_PrefersUserHeader(t *testing.T) {
	products := &stubProducts{byID: map[string]*domain.Product{}}
	gin.SetMode(gin.TestMode)
	logger := log.New(io.Discard, "", 0)
	remote := &stubRemoteStore{}
	factory := func(userID *string, guestKey string) *cartsvc.Service {
		return cartsvc.New(userID, guestKey, remote, nil, noopNotifier{}, logger, cartsvc.Options{})
	}
	deps := Deps{
		Registry:       NewCartRegistry(factory, logger),
		Guests:         &stubGuests{token: "tok-1", guestID: "guest-1"},
		Products:       products,
		AllowedOrigins: []string{"*"},
	}
	router := buildRouter(logger, nil, deps)

	rec := doJSON(t, router, http.MethodGet, "/api/cart", nil, map[string]string{
		"X-User-ID":     "user-7",
		"X-Guest-Token": "tok-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if remote.listCalls != 1 || remote.lastUserID != "user-7" {
		t.Fatalf("expected remote hydrate for user-7, got calls=%d user=%q", remote.listCalls, remote.lastUserID)
	}
}

type stubRemoteStore struct {
	listCalls  int
	lastUserID string
}

func (s *stubRemoteStore) ListForUser(_ context.Context, userID string) ([]domain.RemoteLine, error) {
	s.listCalls++
	s.lastUserID = userID
	return nil, nil
}

func (s *stubRemoteStore) UpsertQuantity(_ context.Context, _, _ string, _ int) error { return nil }
func (s *stubRemoteStore) UpdateQuantity(_ context.Context, _ string, _ int) error   { return nil }
func (s *stubRemoteStore) Delete(_ context.Context, _ string) error                  { return nil }
func (s *stubRemoteStore) DeleteAllForUser(_ context.Context, _ string) error        { return nil }
