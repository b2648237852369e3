package product

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/p1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Product{ID: "p1", RestaurantID: "r1", Name: "Pizza", Price: "8.99"})
	}))
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client())

	p, err := c.Fetch(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "8.99", p.Price)

	_, err = c.Fetch(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientListUsesSearchForQueries(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path+"?"+r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(ListResponse{Items: []Product{{ID: "p1"}}})
	}))
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client())

	items, err := c.List(context.Background(), Query{RestaurantID: "r1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = c.List(context.Background(), Query{Q: "pizza", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/products?limit=20&offset=0&restaurant_id=r1",
		"/products/search?limit=5&offset=0&q=pizza",
	}, seen)
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Q: "  soup ", Limit: 500, Offset: -3}.Normalize()
	assert.Equal(t, Query{Q: "soup", Limit: 20, Offset: 0}, q)
}
