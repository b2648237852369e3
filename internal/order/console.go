package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
)

var ErrMutationInFlight = errors.New("another change to this order is in flight")

// OrderAPI is the operator's view of the Order Service.
type OrderAPI interface {
	Get(ctx context.Context, token, id string) (*Order, error)
	List(ctx context.Context, token string, limit, offset int) ([]Order, error)
	Update(ctx context.Context, token, id string, in UpdateOrderRequest, force bool) (*Order, error)
	Delete(ctx context.Context, token, id string) error
}

// Console is the admin mutation flow. It keeps the orders shown to the
// operator and only replaces one after the backend committed the change.
type Console struct {
	api    OrderAPI
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	displayed map[string]*Order
	inFlight  map[string]bool
}

func NewConsole(api OrderAPI, logger *slog.Logger) *Console {
	return &Console{
		api:       api,
		logger:    logger,
		now:       time.Now,
		displayed: make(map[string]*Order),
		inFlight:  make(map[string]bool),
	}
}

// Displayed returns a copy of what the operator currently sees for id.
func (c *Console) Displayed(id string) (*Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.displayed[id]
	return o.Clone(), ok
}

func (c *Console) show(o *Order) {
	c.mu.Lock()
	c.displayed[o.ID] = o.Clone()
	c.mu.Unlock()
}

func (c *Console) Load(ctx context.Context, sess *auth.Session, id string) (*Order, error) {
	if !sess.Valid(c.now()) {
		return nil, ErrNotAuthenticated
	}
	o, err := c.api.Get(ctx, sess.Token, id)
	if err != nil {
		return nil, err
	}
	c.show(o)
	return o, nil
}

// Refresh replaces the displayed set with one page of orders.
func (c *Console) Refresh(ctx context.Context, sess *auth.Session, limit, offset int) ([]Order, error) {
	if !sess.Valid(c.now()) {
		return nil, ErrNotAuthenticated
	}
	list, err := c.api.List(ctx, sess.Token, limit, offset)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.displayed = make(map[string]*Order, len(list))
	for i := range list {
		c.displayed[list[i].ID] = list[i].Clone()
	}
	c.mu.Unlock()
	return list, nil
}

// acquire marks id in flight; the returned func releases it.
func (c *Console) acquire(id string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[id] {
		return nil, ErrMutationInFlight
	}
	c.inFlight[id] = true
	return func() {
		c.mu.Lock()
		delete(c.inFlight, id)
		c.mu.Unlock()
	}, nil
}

// ChangeStatus requests a status transition. When the order is displayed the
// lifecycle table is checked locally first, and re-applying its current
// status returns it unchanged without a round trip.
func (c *Console) ChangeStatus(ctx context.Context, sess *auth.Session, id string, ch Change) (*Order, error) {
	if !sess.Valid(c.now()) {
		return nil, ErrNotAuthenticated
	}
	release, err := c.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	if cur, ok := c.Displayed(id); ok {
		if err := CheckChange(cur.Status, ch); err != nil {
			return nil, err
		}
		if cur.Status == ch.Status {
			return cur, nil
		}
	} else if !ch.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	status := ch.Status
	updated, err := c.api.Update(ctx, sess.Token, id, UpdateOrderRequest{
		Status:             &status,
		ActualDeliveryTime: ch.ActualDeliveryTime,
	}, ch.Confirmed)
	if err != nil {
		c.logger.Warn("status change failed", "order_id", id, "status", ch.Status, "error", err)
		return nil, err
	}
	c.show(updated)
	c.logger.Info("order status changed", "order_id", id, "status", updated.Status, "forced", ch.Confirmed)
	return updated, nil
}

// Amend edits the comment and/or the actual delivery time. A delivery time
// on a displayed order that is not delivered is refused locally.
func (c *Console) Amend(ctx context.Context, sess *auth.Session, id string, comment *string, deliveredAt *time.Time) (*Order, error) {
	if !sess.Valid(c.now()) {
		return nil, ErrNotAuthenticated
	}
	release, err := c.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	if deliveredAt != nil {
		if cur, ok := c.Displayed(id); ok && cur.Status != StatusDelivered {
			return nil, fmt.Errorf("%w: status %s", ErrDeliveryTime, cur.Status)
		}
	}

	updated, err := c.api.Update(ctx, sess.Token, id, UpdateOrderRequest{
		Comment:            comment,
		ActualDeliveryTime: deliveredAt,
	}, false)
	if err != nil {
		c.logger.Warn("order amend failed", "order_id", id, "error", err)
		return nil, err
	}
	c.show(updated)
	return updated, nil
}

// Delete removes the order for good.
func (c *Console) Delete(ctx context.Context, sess *auth.Session, id string) error {
	if !sess.Valid(c.now()) {
		return ErrNotAuthenticated
	}
	release, err := c.acquire(id)
	if err != nil {
		return err
	}
	defer release()

	if err := c.api.Delete(ctx, sess.Token, id); err != nil {
		c.logger.Warn("order delete failed", "order_id", id, "error", err)
		return err
	}
	c.mu.Lock()
	delete(c.displayed, id)
	c.mu.Unlock()
	c.logger.Info("order deleted", "order_id", id)
	return nil
}
