package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/cart"
	"github.com/MikeMC777/ordenes-restaurante/internal/money"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMixedRestaurants   = errors.New("cart mixes items from more than one restaurant")
	ErrNoRestaurant       = errors.New("cart items have no restaurant")
	ErrNoDeliveryAddress  = errors.New("delivery address is required")
	ErrInvalidPrice       = errors.New("cart line has an invalid price")
	ErrInvalidDiscount    = errors.New("invalid discount")
	ErrSubmissionInFlight = errors.New("order submission already in flight")
)

// Input is what the buyer chooses at checkout besides the cart itself.
type Input struct {
	DeliveryAddressID string
	Comment           string
	// Discount is a flat amount; empty means "0.00".
	Discount string
	// ItemComments are keyed by product id.
	ItemComments map[string]string
}

// Compose validates the cart and session and assembles the create payload.
// It never touches the network.
func Compose(sess *auth.Session, lines []cart.Line, in Input, now time.Time) (CreateOrderRequest, error) {
	if !sess.Valid(now) {
		return CreateOrderRequest{}, ErrNotAuthenticated
	}
	if len(lines) == 0 {
		return CreateOrderRequest{}, ErrEmptyCart
	}
	restaurants := cart.RestaurantIDs(lines)
	if len(restaurants) > 1 {
		return CreateOrderRequest{}, fmt.Errorf("%w: %v", ErrMixedRestaurants, restaurants)
	}
	restaurantID := restaurants[0]
	if restaurantID == "" {
		return CreateOrderRequest{}, ErrNoRestaurant
	}
	if in.DeliveryAddressID == "" {
		return CreateOrderRequest{}, ErrNoDeliveryAddress
	}

	price := decimal.Zero
	items := make([]CreateOrderItem, 0, len(lines))
	for _, l := range lines {
		unit, err := money.Parse(l.Price)
		if err != nil {
			return CreateOrderRequest{}, fmt.Errorf("%w: %s", ErrInvalidPrice, l.ProductID)
		}
		price = price.Add(money.LineTotal(unit, l.Quantity))
		items = append(items, CreateOrderItem{
			MenuItemID: l.ProductID,
			ItemName:   l.Name,
			Quantity:   l.Quantity,
			Price:      money.Format(unit),
			Comment:    in.ItemComments[l.ProductID],
		})
	}

	discount, err := money.ParseOrZero(in.Discount)
	if err != nil {
		return CreateOrderRequest{}, fmt.Errorf("%w: %v", ErrInvalidDiscount, err)
	}

	return CreateOrderRequest{
		UserID:            sess.UserID,
		RestaurantID:      restaurantID,
		DeliveryAddressID: in.DeliveryAddressID,
		Price:             money.Format(price),
		Discount:          money.Format(discount),
		FinalPrice:        money.Format(money.SubtractFloor(price, discount)),
		Comment:           in.Comment,
		Status:            StatusPending,
		Cart:              items,
	}, nil
}

// Basket is the part of the cart store the composer needs.
type Basket interface {
	Lines() []cart.Line
	Subtract(ordered []cart.Line)
}

// Submitter creates orders on the Order Service.
type Submitter interface {
	Create(ctx context.Context, token string, in CreateOrderRequest) (*Order, error)
}

// Composer turns the cart into a placed order. One placement at a time:
// a second Place while one is in flight fails with ErrSubmissionInFlight.
type Composer struct {
	cart     Basket
	orders   Submitter
	logger   *slog.Logger
	now      func() time.Time
	inFlight atomic.Bool
}

func NewComposer(c Basket, orders Submitter, logger *slog.Logger) *Composer {
	return &Composer{cart: c, orders: orders, logger: logger, now: time.Now}
}

func (c *Composer) InFlight() bool { return c.inFlight.Load() }

// Place composes, submits and, only after the service returned an order id,
// takes the submitted lines out of the cart. On any failure the cart is left
// as it was.
func (c *Composer) Place(ctx context.Context, sess *auth.Session, in Input) (*Order, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer c.inFlight.Store(false)

	snapshot := c.cart.Lines()
	req, err := Compose(sess, snapshot, in, c.now())
	if err != nil {
		return nil, err
	}

	created, err := c.orders.Create(ctx, sess.Token, req)
	if err != nil {
		c.logger.Warn("order submission failed", "user_id", req.UserID, "restaurant_id", req.RestaurantID, "error", err)
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if created == nil || created.ID == "" {
		c.logger.Warn("order submission returned no id", "user_id", req.UserID)
		return nil, ErrMissingID
	}

	c.cart.Subtract(snapshot)

	if created.Status == "" {
		created.Status = StatusPending
	}
	if len(created.History) == 0 {
		at := created.CreatedAt
		if at.IsZero() {
			at = c.now()
		}
		created.History = []StatusEvent{{Status: created.Status, Timestamp: at}}
	}
	c.logger.Info("order placed", "order_id", created.ID, "restaurant_id", req.RestaurantID, "final_price", req.FinalPrice)
	return created, nil
}
