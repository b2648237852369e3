package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/logging"
	prod "github.com/MikeMC777/ordenes-restaurante/internal/product"
)

//
// ===== IN-MEMORY STUB REPO (implements product.Repository) =====
//

type stubRepo struct {
	items     map[string]*prod.Product
	lastQuery prod.Query
}

func newStubRepo() *stubRepo {
	return &stubRepo{items: make(map[string]*prod.Product)}
}

func (s *stubRepo) List(ctx context.Context, q prod.Query) ([]prod.Product, error) {
	s.lastQuery = q
	out := make([]prod.Product, 0, len(s.items))
	for _, v := range s.items {
		if q.Q != "" && !containsFold(v.Name, q.Q) && !containsFold(v.Description, q.Q) {
			continue
		}
		if q.RestaurantID != "" && v.RestaurantID != q.RestaurantID {
			continue
		}
		out = append(out, *v)
	}
	start := q.Offset
	if start > len(out) {
		return []prod.Product{}, nil
	}
	end := start + q.Limit
	if end > len(out) || q.Limit <= 0 {
		end = len(out)
	}
	return out[start:end], nil
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*prod.Product, error) {
	p, ok := s.items[id]
	if !ok {
		return nil, prod.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubRepo) Create(ctx context.Context, p *prod.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.items[p.ID] = &cp
	return nil
}

func (s *stubRepo) Update(ctx context.Context, p *prod.Product) error {
	cur, ok := s.items[p.ID]
	if !ok {
		return prod.ErrNotFound
	}
	if p.Name != "" {
		cur.Name = p.Name
	}
	if p.Description != "" {
		cur.Description = p.Description
	}
	if p.Price != "" {
		cur.Price = p.Price
	}
	if p.Image != "" {
		cur.Image = p.Image
	}
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func containsFold(s, sub string) bool {
	return bytes.Contains(bytes.ToLower([]byte(s)), bytes.ToLower([]byte(sub)))
}

//
// ===== TEST ROUTER wired like main =====
//

var testSecret = []byte("test-secret")

func newRouter(repo prod.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, repo, logging.Discard(), testSecret)
	return r
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, "ops", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func send(r *gin.Engine, method, target, body, tok string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	r.ServeHTTP(w, req)
	return w
}

//
// ===== TESTS =====
//

// /products → pagination only, no search term reaches the repo
func TestListProducts_PaginationOnly_NoSearch(t *testing.T) {
	repo := newStubRepo()
	for i := 1; i <= 3; i++ {
		_ = repo.Create(context.Background(), &prod.Product{
			ID:           fmt.Sprintf("%d", i),
			RestaurantID: "r1",
			Name:         fmt.Sprintf("Dish %d", i),
			Price:        "10.00",
		})
	}
	r := newRouter(repo)

	w := send(r, http.MethodGet, "/products?limit=2&offset=1&q=dish", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got prod.ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got.Items) != 2 || got.Limit != 2 || got.Offset != 1 {
		t.Fatalf("len=%d limit=%d offset=%d", len(got.Items), got.Limit, got.Offset)
	}
	if repo.lastQuery.Q != "" {
		t.Fatalf("listOnlyHandler must not search; Q=%q", repo.lastQuery.Q)
	}
}

func TestListProducts_RestaurantFilter(t *testing.T) {
	repo := newStubRepo()
	_ = repo.Create(context.Background(), &prod.Product{ID: "a", RestaurantID: "r1", Name: "Pizza", Price: "8.99"})
	_ = repo.Create(context.Background(), &prod.Product{ID: "b", RestaurantID: "r2", Name: "Ramen", Price: "11.00"})
	r := newRouter(repo)

	w := send(r, http.MethodGet, "/products?restaurant_id=r2", "", "")
	var got prod.ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if len(got.Items) != 1 || got.Items[0].ID != "b" || got.RestaurantID != "r2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

// /products/search → q required (≥2 chars)
func TestSearchProducts_RequiresQAndFilters(t *testing.T) {
	repo := newStubRepo()
	_ = repo.Create(context.Background(), &prod.Product{ID: "a", RestaurantID: "r1", Name: "Mozzarella sticks", Price: "5.50"})
	_ = repo.Create(context.Background(), &prod.Product{ID: "b", RestaurantID: "r1", Name: "Caesar salad", Description: "lettuce, croutons", Price: "7.25"})
	r := newRouter(repo)

	if w := send(r, http.MethodGet, "/products/search?limit=10&offset=0", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for missing q, got %d", w.Code)
	}
	if w := send(r, http.MethodGet, "/products/search?q=m", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for short q, got %d", w.Code)
	}

	w := send(r, http.MethodGet, "/products/search?q=mo&limit=10&offset=0", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got prod.ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Q != "mo" || len(got.Items) != 1 || got.Items[0].ID != "a" {
		t.Fatalf("unexpected result: q=%q items=%+v", got.Q, got.Items)
	}
	if repo.lastQuery.Q != "mo" {
		t.Fatalf("search term not passed to repo")
	}
}

// /products/:id
func TestGetProduct_OK_And_NotFound(t *testing.T) {
	repo := newStubRepo()
	_ = repo.Create(context.Background(), &prod.Product{ID: "x", RestaurantID: "r1", Name: "Tiramisu", Price: "6.00"})
	r := newRouter(repo)

	if w := send(r, http.MethodGet, "/products/x", "", ""); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w := send(r, http.MethodGet, "/products/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
}

// POST /products
func TestCreateProduct_Valid_And_Invalid(t *testing.T) {
	repo := newStubRepo()
	r := newRouter(repo)
	tok := adminToken(t)

	valid := `{"restaurant_id":"r1","name":"Margherita","description":"Tomato, mozzarella","price":"8.9"}`
	w := send(r, http.MethodPost, "/products", valid, tok)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var created prod.Product
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Price != "8.90" || created.ID == "" {
		t.Fatalf("unexpected product: %+v", created)
	}

	cases := map[string]string{
		"missing name":       `{"restaurant_id":"r1","price":"1.00"}`,
		"missing price":      `{"restaurant_id":"r1","name":"x"}`,
		"negative price":     `{"restaurant_id":"r1","name":"x","price":"-1.00"}`,
		"missing restaurant": `{"name":"x","price":"1.00"}`,
		"bad json":           `{`,
	}
	for name, body := range cases {
		if w := send(r, http.MethodPost, "/products", body, tok); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: want 400, got %d body=%s", name, w.Code, w.Body.String())
		}
	}

	if w := send(r, http.MethodPost, "/products", valid, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: want 401, got %d", w.Code)
	}
}

// PUT /products/:id is partial; an omitted price is left untouched.
func TestUpdateProduct_Partial_WithAndWithoutPrice(t *testing.T) {
	repo := newStubRepo()
	_ = repo.Create(context.Background(), &prod.Product{ID: "p", RestaurantID: "r1", Name: "Soup", Price: "10.00"})
	r := newRouter(repo)
	tok := adminToken(t)

	if w := send(r, http.MethodPut, "/products/p", `{"name":"Soup of the day"}`, tok); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got, _ := repo.GetByID(context.Background(), "p")
	if got.Name != "Soup of the day" || got.Price != "10.00" {
		t.Fatalf("update without price not honoured: %+v", got)
	}

	if w := send(r, http.MethodPut, "/products/p", `{"price":"12.5"}`, tok); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got, _ = repo.GetByID(context.Background(), "p")
	if got.Price != "12.50" {
		t.Fatalf("price update not applied: %+v", got)
	}

	if w := send(r, http.MethodPut, "/products/p", `{"price":"abc"}`, tok); w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for bad price, got %d", w.Code)
	}
	if w := send(r, http.MethodPut, "/products/nope", `{"name":"x"}`, tok); w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
}

// DELETE /products/:id
func TestDeleteProduct_OK_And_NotFound(t *testing.T) {
	repo := newStubRepo()
	_ = repo.Create(context.Background(), &prod.Product{ID: "del", RestaurantID: "r1", Name: "X", Price: "1.00"})
	r := newRouter(repo)
	tok := adminToken(t)

	if w := send(r, http.MethodDelete, "/products/del", "", tok); w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w := send(r, http.MethodDelete, "/products/del", "", tok); w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}

	customer, _ := auth.Issue(testSecret, "u1", auth.RoleCustomer, time.Hour)
	if w := send(r, http.MethodDelete, "/products/del", "", customer); w.Code != http.StatusForbidden {
		t.Fatalf("customer delete: want 403, got %d", w.Code)
	}
}
