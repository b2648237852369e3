package order

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/cart"
	"github.com/MikeMC777/ordenes-restaurante/internal/logging"
	"github.com/MikeMC777/ordenes-restaurante/internal/product"
)

var (
	pizza = product.Product{ID: "p1", RestaurantID: "r1", Name: "Pizza", Price: "8.99"}
	salad = product.Product{ID: "p2", RestaurantID: "r1", Name: "Salad", Price: "6.50"}
	sushi = product.Product{ID: "p3", RestaurantID: "r2", Name: "Sushi", Price: "12.00"}
)

func validSession() *auth.Session {
	return &auth.Session{UserID: "u1", Role: auth.RoleCustomer, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
}

// fakeSubmitter records calls and answers with resp/err. block, when set,
// holds every call until it is closed; entered is closed on the first call.
type fakeSubmitter struct {
	calls   atomic.Int32
	last    CreateOrderRequest
	token   string
	resp    *Order
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSubmitter) Create(_ context.Context, token string, in CreateOrderRequest) (*Order, error) {
	if f.calls.Add(1) == 1 && f.entered != nil {
		close(f.entered)
	}
	f.last, f.token = in, token
	if f.block != nil {
		<-f.block
	}
	return f.resp, f.err
}

func filledCart(t *testing.T, items ...product.Product) *cart.Store {
	t.Helper()
	s := cart.Open(cart.NewMemoryStorage(), logging.Discard())
	for _, p := range items {
		s.Add(p)
	}
	return s
}

func TestComposeTotals(t *testing.T) {
	c := filledCart(t, pizza, pizza, salad)

	req, err := Compose(validSession(), c.Lines(), Input{DeliveryAddressID: "a1", Discount: "2.00"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "24.48", req.Price)
	assert.Equal(t, "2.00", req.Discount)
	assert.Equal(t, "22.48", req.FinalPrice)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, "r1", req.RestaurantID)
	assert.Equal(t, "u1", req.UserID)
	assert.Len(t, req.Cart, 2)
}

func TestComposeDiscountLargerThanPriceFloorsAtZero(t *testing.T) {
	c := filledCart(t, salad)
	req, err := Compose(validSession(), c.Lines(), Input{DeliveryAddressID: "a1", Discount: "10.00"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "0.00", req.FinalPrice)
}

func TestComposeItemCommentsAndSnapshots(t *testing.T) {
	c := filledCart(t, pizza)
	req, err := Compose(validSession(), c.Lines(), Input{
		DeliveryAddressID: "a1",
		ItemComments:      map[string]string{"p1": "extra basil"},
	}, time.Now())
	require.NoError(t, err)
	require.Len(t, req.Cart, 1)
	assert.Equal(t, CreateOrderItem{MenuItemID: "p1", ItemName: "Pizza", Quantity: 1, Price: "8.99", Comment: "extra basil"}, req.Cart[0])
}

func TestComposeValidation(t *testing.T) {
	expired := validSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)

	tests := []struct {
		name    string
		sess    *auth.Session
		items   []product.Product
		in      Input
		wantErr error
	}{
		{"no session", nil, []product.Product{pizza}, Input{DeliveryAddressID: "a1"}, ErrNotAuthenticated},
		{"expired session", expired, []product.Product{pizza}, Input{DeliveryAddressID: "a1"}, ErrNotAuthenticated},
		{"empty cart", validSession(), nil, Input{DeliveryAddressID: "a1"}, ErrEmptyCart},
		{"mixed restaurants", validSession(), []product.Product{pizza, sushi}, Input{DeliveryAddressID: "a1"}, ErrMixedRestaurants},
		{"no restaurant", validSession(), []product.Product{{ID: "x", Name: "X", Price: "1.00"}}, Input{DeliveryAddressID: "a1"}, ErrNoRestaurant},
		{"no address", validSession(), []product.Product{pizza}, Input{}, ErrNoDeliveryAddress},
		{"bad discount", validSession(), []product.Product{pizza}, Input{DeliveryAddressID: "a1", Discount: "-1"}, ErrInvalidDiscount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := filledCart(t, tt.items...)
			_, err := Compose(tt.sess, c.Lines(), tt.in, time.Now())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlaceClearsCartOnSuccess(t *testing.T) {
	c := filledCart(t, pizza, pizza, salad)
	sub := &fakeSubmitter{resp: &Order{ID: "o1", FinalPrice: "24.48"}}
	comp := NewComposer(c, sub, logging.Discard())

	o, err := comp.Place(context.Background(), validSession(), Input{DeliveryAddressID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusPending, o.History[0].Status)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, "tok", sub.token)
	assert.Equal(t, "24.48", sub.last.Price)
}

func TestPlaceMixedRestaurantsNeverCallsService(t *testing.T) {
	c := filledCart(t, pizza, sushi)
	sub := &fakeSubmitter{resp: &Order{ID: "o1"}}
	comp := NewComposer(c, sub, logging.Discard())

	_, err := comp.Place(context.Background(), validSession(), Input{DeliveryAddressID: "a1"})
	assert.ErrorIs(t, err, ErrMixedRestaurants)
	assert.Equal(t, int32(0), sub.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestPlaceKeepsCartOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		sub     *fakeSubmitter
		wantErr error
	}{
		{"missing id", &fakeSubmitter{resp: &Order{}}, ErrMissingID},
		{"nil response", &fakeSubmitter{}, ErrMissingID},
		{"rate limited", &fakeSubmitter{err: &APIError{StatusCode: 429}}, ErrRateLimited},
		{"network", &fakeSubmitter{err: errors.New("connection refused")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := filledCart(t, pizza, salad)
			comp := NewComposer(c, tt.sub, logging.Discard())

			_, err := comp.Place(context.Background(), validSession(), Input{DeliveryAddressID: "a1"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, 2, c.Len())
			assert.False(t, comp.InFlight())
		})
	}
}

func TestPlaceConcurrentDoubleSubmitCallsOnce(t *testing.T) {
	c := filledCart(t, pizza)
	sub := &fakeSubmitter{resp: &Order{ID: "o1"}, block: make(chan struct{})}
	comp := NewComposer(c, sub, logging.Discard())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = comp.Place(context.Background(), validSession(), Input{DeliveryAddressID: "a1"})
	}()
	require.Eventually(t, comp.InFlight, time.Second, time.Millisecond)

	_, errs[1] = comp.Place(context.Background(), validSession(), Input{DeliveryAddressID: "a1"})
	close(sub.block)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrSubmissionInFlight)
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestPlaceKeepsLinesAddedDuringSubmission(t *testing.T) {
	c := filledCart(t, pizza)
	sub := &fakeSubmitter{resp: &Order{ID: "o1"}, block: make(chan struct{}), entered: make(chan struct{})}
	comp := NewComposer(c, sub, logging.Discard())

	done := make(chan error, 1)
	go func() {
		_, err := comp.Place(context.Background(), validSession(), Input{DeliveryAddressID: "a1"})
		done <- err
	}()
	<-sub.entered

	c.Add(salad)
	c.Add(pizza)
	close(sub.block)
	require.NoError(t, <-done)

	require.Len(t, sub.last.Cart, 1)
	assert.Equal(t, 1, sub.last.Cart[0].Quantity)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Quantity(pizza.ID))
	assert.Equal(t, 1, c.Quantity(salad.ID))
}
