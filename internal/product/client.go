package product

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Client reads the catalog from the product service.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{HTTP: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Fetch(ctx context.Context, id string) (*Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/products/%s", c.BaseURL, url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("fetch product: %s", res.Status)
	}
	var p Product
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List pages the catalog; a non-empty q.Q goes through the search endpoint.
func (c *Client) List(ctx context.Context, q Query) ([]Product, error) {
	q = q.Normalize()
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	if q.RestaurantID != "" {
		v.Set("restaurant_id", q.RestaurantID)
	}
	path := "/products?"
	if q.Q != "" {
		v.Set("q", q.Q)
		path = "/products/search?"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list products: %s", res.Status)
	}
	var out ListResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
