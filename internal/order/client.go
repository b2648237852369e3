package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrMissingID         = errors.New("order response has no id")
	ErrMalformedResponse = errors.New("malformed order response")
	ErrRateLimited       = errors.New("rate limited")
)

// APIError is a non-2xx answer from the Order Service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("order service: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("order service: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrInvalidTransition:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// Client talks to the Order Service. Every call carries the bearer token.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{HTTP: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var he HTTPError
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(raw, &he) != nil || he.Error == "" {
			he.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: res.StatusCode, Message: he.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Create submits a new order. Success is defined by the payload: a response
// without an id is ErrMissingID whatever the HTTP status was.
func (c *Client) Create(ctx context.Context, token string, in CreateOrderRequest) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, "/orders", token, in, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, ErrMissingID
	}
	return &out, nil
}

// Update sends a partial update. force confirms a status change outside the lifecycle table.
func (c *Client) Update(ctx context.Context, token, id string, in UpdateOrderRequest, force bool) (*Order, error) {
	path := "/orders/" + url.PathEscape(id)
	if force {
		path += "?force=true"
	}
	var out Order
	if err := c.do(ctx, http.MethodPut, path, token, in, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, ErrMalformedResponse
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, token, id string) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), token, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, ErrMalformedResponse
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context, token string, limit, offset int) ([]Order, error) {
	var out ListResponse
	if err := c.do(ctx, http.MethodGet, "/orders"+page(limit, offset), token, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) ListByUser(ctx context.Context, token, userID string, limit, offset int) ([]Order, error) {
	var out ListResponse
	if err := c.do(ctx, http.MethodGet, "/orders/user/"+url.PathEscape(userID)+page(limit, offset), token, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Delete is a hard delete; there is no undo.
func (c *Client) Delete(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/orders/"+url.PathEscape(id), token, nil, nil)
}

func page(limit, offset int) string {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		v.Set("offset", strconv.Itoa(offset))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}
