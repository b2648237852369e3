package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/metrics"
	"github.com/MikeMC777/ordenes-restaurante/internal/money"
	ord "github.com/MikeMC777/ordenes-restaurante/internal/order"
)

type deps struct {
	repo    ord.Repository
	events  ord.Publisher
	metrics *metrics.OrderMetrics
	logger  *slog.Logger
	now     func() time.Time
}

func newRouter(d *deps, secret []byte, middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware...)

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/orders", auth.Middleware(secret))
	admin := auth.RequireRole(auth.RoleAdmin)

	api.POST("", createOrderHandler(d))
	api.GET("", admin, listOrdersHandler(d))
	api.GET("/:id", getOrderHandler(d))
	api.GET("/:id/items", getOrderItemsHandler(d))
	api.GET("/:id/history", getOrderHistoryHandler(d))
	api.GET("/user/:user_id", listOrdersByUserHandler(d))
	api.PUT("/:id", admin, updateOrderHandler(d))
	api.DELETE("/:id", admin, deleteOrderHandler(d))
	return r
}

func errJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ord.HTTPError{Error: msg})
}

func (d *deps) reject(reason string) {
	if d.metrics != nil {
		d.metrics.Rejected.WithLabelValues(reason).Inc()
	}
}

func (d *deps) publish(c *gin.Context, typ string, o *ord.Order) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(c.Request.Context(), o.ID, ord.NewEvent(typ, o, d.now())); err != nil {
		d.logger.Error("failed to publish order event", "type", typ, "order_id", o.ID, "error", err)
	}
}

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return ord.Page(limit, offset)
}

// validateCreate checks the payload and recomputes its totals.
func validateCreate(in *ord.CreateOrderRequest) (price, discount, final decimal.Decimal, err error) {
	switch {
	case strings.TrimSpace(in.RestaurantID) == "":
		return price, discount, final, errors.New("restaurant_id is required")
	case strings.TrimSpace(in.DeliveryAddressID) == "":
		return price, discount, final, errors.New("delivery_address_id is required")
	case len(in.Cart) == 0:
		return price, discount, final, errors.New("cart must not be empty")
	case in.Status != "" && in.Status != ord.StatusPending:
		return price, discount, final, errors.New("new orders must be pending")
	case in.DriverID != nil:
		return price, discount, final, errors.New("new orders have no driver")
	case in.ActualDeliveryTime != nil:
		return price, discount, final, errors.New("new orders have no actual_delivery_time")
	}

	price = decimal.Zero
	for _, it := range in.Cart {
		if it.MenuItemID == "" || it.Quantity < 1 {
			return price, discount, final, errors.New("cart items need menu_item_id and quantity >= 1")
		}
		unit, perr := money.Parse(it.Price)
		if perr != nil {
			return price, discount, final, errors.New("invalid item price")
		}
		price = price.Add(money.LineTotal(unit, it.Quantity))
	}
	if in.Price != "" && !money.Equal(in.Price, money.Format(price)) {
		return price, discount, final, errors.New("price does not match cart")
	}
	discount, err = money.ParseOrZero(in.Discount)
	if err != nil {
		return price, discount, final, errors.New("invalid discount")
	}
	final = money.SubtractFloor(price, discount)
	if in.FinalPrice != "" && !money.Equal(in.FinalPrice, money.Format(final)) {
		return price, discount, final, errors.New("final_price must equal price - discount")
	}
	return price, discount, final, nil
}

// createOrderHandler godoc
// @Summary      Create order
// @Description  Creates a pending order from a cart snapshot. driver_id and actual_delivery_time must be null.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        body  body      ord.CreateOrderRequest  true  "order"
// @Success      201   {object}  ord.Order
// @Failure      400   {object}  ord.HTTPError
// @Failure      403   {object}  ord.HTTPError
// @Security     BearerAuth
// @Router       /orders [post]
func createOrderHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ord.CreateOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			d.reject("invalid_json")
			errJSON(c, http.StatusBadRequest, "invalid json")
			return
		}
		claims := auth.ClaimsFrom(c)
		if in.UserID == "" {
			in.UserID = claims.Subject
		}
		if !auth.CanAccessUser(c, in.UserID) {
			d.reject("foreign_user")
			errJSON(c, http.StatusForbidden, "cannot order for another user")
			return
		}
		price, discount, final, err := validateCreate(&in)
		if err != nil {
			d.reject("validation")
			errJSON(c, http.StatusBadRequest, err.Error())
			return
		}

		now := d.now().UTC()
		o := &ord.Order{
			ID:                uuid.NewString(),
			UserID:            in.UserID,
			RestaurantID:      in.RestaurantID,
			DeliveryAddressID: in.DeliveryAddressID,
			Price:             money.Format(price),
			Discount:          money.Format(discount),
			FinalPrice:        money.Format(final),
			Comment:           in.Comment,
			Status:            ord.StatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
			History:           []ord.StatusEvent{{Status: ord.StatusPending, Timestamp: now}},
		}
		for _, it := range in.Cart {
			unit, _ := money.Parse(it.Price)
			o.Cart = append(o.Cart, ord.Item{
				ID:         uuid.NewString(),
				OrderID:    o.ID,
				MenuItemID: it.MenuItemID,
				ItemName:   it.ItemName,
				Quantity:   it.Quantity,
				Price:      money.Format(unit),
				Comment:    it.Comment,
			})
		}

		if err := d.repo.Create(c.Request.Context(), o); err != nil {
			d.logger.Error("failed to create order", "error", err)
			errJSON(c, http.StatusInternalServerError, "create error")
			return
		}
		if d.metrics != nil {
			d.metrics.Created.Inc()
		}
		d.publish(c, ord.EventCreated, o)
		d.logger.Info("order created", "order_id", o.ID, "user_id", o.UserID, "restaurant_id", o.RestaurantID)
		c.JSON(http.StatusCreated, o)
	}
}

// loadOwned fetches the order and enforces owner-or-admin access.
func loadOwned(c *gin.Context, d *deps) (*ord.Order, bool) {
	o, err := d.repo.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ord.ErrNotFound) {
		errJSON(c, http.StatusNotFound, "order not found")
		return nil, false
	}
	if err != nil {
		d.logger.Error("failed to get order", "error", err, "id", c.Param("id"))
		errJSON(c, http.StatusInternalServerError, "get error")
		return nil, false
	}
	if !auth.CanAccessUser(c, o.UserID) {
		// indistinguishable from a missing order for other buyers
		errJSON(c, http.StatusNotFound, "order not found")
		return nil, false
	}
	return o, true
}

// getOrderHandler godoc
// @Summary  Get order with items and status history
// @Tags     orders
// @Produce  json
// @Param    id   path      string  true  "order id"
// @Success  200  {object}  ord.Order
// @Failure  404  {object}  ord.HTTPError
// @Security BearerAuth
// @Router   /orders/{id} [get]
func getOrderHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := loadOwned(c, d)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// getOrderItemsHandler godoc
// @Summary  Order line snapshots
// @Tags     orders
// @Produce  json
// @Param    id   path  string  true  "order id"
// @Success  200  {object}  map[string][]ord.Item
// @Security BearerAuth
// @Router   /orders/{id}/items [get]
func getOrderItemsHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := loadOwned(c, d)
		if !ok {
			return
		}
		items := o.Cart
		if items == nil {
			items = []ord.Item{}
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// getOrderHistoryHandler godoc
// @Summary  Order status history, oldest first
// @Tags     orders
// @Produce  json
// @Param    id   path  string  true  "order id"
// @Success  200  {object}  map[string][]ord.StatusEvent
// @Security BearerAuth
// @Router   /orders/{id}/history [get]
func getOrderHistoryHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := loadOwned(c, d)
		if !ok {
			return
		}
		history := o.History
		if history == nil {
			history = []ord.StatusEvent{}
		}
		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}

// listOrdersHandler godoc
// @Summary  List all orders (operators)
// @Tags     orders
// @Produce  json
// @Param    limit   query  int  false  "page size"
// @Param    offset  query  int  false  "offset"
// @Success  200  {object}  ord.ListResponse
// @Security BearerAuth
// @Router   /orders [get]
func listOrdersHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		items, err := d.repo.List(c.Request.Context(), limit, offset)
		if err != nil {
			d.logger.Error("failed to list orders", "error", err)
			errJSON(c, http.StatusInternalServerError, "list error")
			return
		}
		c.JSON(http.StatusOK, ord.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// listOrdersByUserHandler godoc
// @Summary  List a buyer's orders
// @Tags     orders
// @Produce  json
// @Param    user_id  path   string  true   "user id"
// @Param    limit    query  int     false  "page size"
// @Param    offset   query  int     false  "offset"
// @Success  200  {object}  ord.ListResponse
// @Failure  403  {object}  ord.HTTPError
// @Security BearerAuth
// @Router   /orders/user/{user_id} [get]
func listOrdersByUserHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.Param("user_id")
		if !auth.CanAccessUser(c, uid) {
			errJSON(c, http.StatusForbidden, "forbidden")
			return
		}
		limit, offset := pagination(c)
		items, err := d.repo.ListByUser(c.Request.Context(), uid, limit, offset)
		if err != nil {
			d.logger.Error("failed to list user orders", "error", err, "user_id", uid)
			errJSON(c, http.StatusInternalServerError, "list error")
			return
		}
		c.JSON(http.StatusOK, ord.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// updateOrderHandler godoc
// @Summary      Update status, comment or actual delivery time
// @Description  Status changes follow pending→accepted→delivered and pending→rejected; force=true confirms any other change. actual_delivery_time is only accepted for delivered orders. 409 also means the order changed since it was read.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id     path   string                  true   "order id"
// @Param        force  query  bool                    false  "confirm a change outside the lifecycle"
// @Param        body   body   ord.UpdateOrderRequest  true   "changes"
// @Success      200  {object}  ord.Order
// @Failure      400  {object}  ord.HTTPError
// @Failure      404  {object}  ord.HTTPError
// @Failure      409  {object}  ord.HTTPError
// @Security     BearerAuth
// @Router       /orders/{id} [put]
func updateOrderHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ord.UpdateOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			errJSON(c, http.StatusBadRequest, "invalid json")
			return
		}
		if in.Status == nil && in.Comment == nil && in.ActualDeliveryTime == nil {
			errJSON(c, http.StatusBadRequest, "nothing to update")
			return
		}
		force := c.Query("force") == "true"

		o, err := d.repo.GetByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ord.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "order not found")
			return
		}
		if err != nil {
			d.logger.Error("failed to get order", "error", err, "id", c.Param("id"))
			errJSON(c, http.StatusInternalServerError, "get error")
			return
		}

		now := d.now().UTC()
		from := o.Status
		seen := len(o.History)
		changed := false

		if in.Status != nil {
			applied, err := o.Apply(ord.Change{
				Status:             *in.Status,
				ActualDeliveryTime: in.ActualDeliveryTime,
				Confirmed:          force,
			}, now)
			switch {
			case errors.Is(err, ord.ErrInvalidStatus):
				d.reject("invalid_status")
				errJSON(c, http.StatusBadRequest, "invalid status")
				return
			case errors.Is(err, ord.ErrDeliveryTime):
				d.reject("delivery_time")
				errJSON(c, http.StatusBadRequest, err.Error())
				return
			case errors.Is(err, ord.ErrInvalidTransition):
				d.reject("invalid_transition")
				errJSON(c, http.StatusConflict, err.Error())
				return
			}
			changed = applied
		}
		if in.Comment != nil && *in.Comment != o.Comment {
			o.Comment = *in.Comment
			changed = true
		}
		if in.ActualDeliveryTime != nil {
			if o.Status != ord.StatusDelivered {
				d.reject("delivery_time")
				errJSON(c, http.StatusBadRequest, ord.ErrDeliveryTime.Error())
				return
			}
			at := in.ActualDeliveryTime.UTC()
			o.ActualDeliveryTime = &at
			changed = true
		}

		if changed {
			o.UpdatedAt = now
			err := d.repo.Update(c.Request.Context(), o, from, o.History[seen:])
			if errors.Is(err, ord.ErrStatusChanged) {
				d.reject("stale_status")
				errJSON(c, http.StatusConflict, "order was changed concurrently, reload and retry")
				return
			}
			if errors.Is(err, ord.ErrNotFound) {
				errJSON(c, http.StatusNotFound, "order not found")
				return
			}
			if err != nil {
				d.logger.Error("failed to update order", "error", err, "id", o.ID)
				errJSON(c, http.StatusInternalServerError, "update error")
				return
			}
			if o.Status != from {
				if d.metrics != nil {
					d.metrics.Transitions.WithLabelValues(string(from), string(o.Status)).Inc()
				}
				d.publish(c, ord.EventStatusChanged, o)
				d.logger.Info("order status changed", "order_id", o.ID, "from", from, "to", o.Status, "forced", force)
			} else {
				d.publish(c, ord.EventAmended, o)
			}
		}
		c.JSON(http.StatusOK, o)
	}
}

// deleteOrderHandler godoc
// @Summary  Delete order (no undo)
// @Tags     orders
// @Param    id  path  string  true  "order id"
// @Success  204
// @Failure  404  {object}  ord.HTTPError
// @Security BearerAuth
// @Router   /orders/{id} [delete]
func deleteOrderHandler(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ok, err := d.repo.Delete(c.Request.Context(), id)
		if err != nil {
			d.logger.Error("failed to delete order", "error", err, "id", id)
			errJSON(c, http.StatusInternalServerError, "delete error")
			return
		}
		if !ok {
			errJSON(c, http.StatusNotFound, "order not found")
			return
		}
		if d.events != nil {
			if err := d.events.Publish(c.Request.Context(), id, ord.Event{Type: ord.EventDeleted, OrderID: id, Timestamp: d.now().UTC()}); err != nil {
				d.logger.Error("failed to publish order event", "type", ord.EventDeleted, "order_id", id, "error", err)
			}
		}
		d.logger.Info("order deleted", "order_id", id)
		c.Status(http.StatusNoContent)
	}
}
