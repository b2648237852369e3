package order

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDelivered Status = "delivered"
	StatusRejected  Status = "rejected"
)

// Order is the aggregate root. Money fields are NUMERIC -> string with two
// fraction digits.
type Order struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"user_id"`
	RestaurantID       string        `json:"restaurant_id"`
	DeliveryAddressID  string        `json:"delivery_address_id"`
	DriverID           *string       `json:"driver_id"`
	Price              string        `json:"price"`
	Discount           string        `json:"discount"`
	FinalPrice         string        `json:"final_price"`
	Comment            string        `json:"comment"`
	Status             Status        `json:"status"`
	ActualDeliveryTime *time.Time    `json:"actual_delivery_time"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	Cart               []Item        `json:"cart,omitempty"`
	History            []StatusEvent `json:"history,omitempty"`
}

// Item is the snapshot of a menu item taken at submission time.
type Item struct {
	ID         string `json:"id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	MenuItemID string `json:"menu_item_id"`
	ItemName   string `json:"item_name"`
	Quantity   int    `json:"quantity"`
	Price      string `json:"price"`
	Comment    string `json:"comment"`
}

// StatusEvent is append-only.
type StatusEvent struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone copies the slices and pointers so callers can mutate freely.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.DriverID != nil {
		d := *o.DriverID
		cp.DriverID = &d
	}
	if o.ActualDeliveryTime != nil {
		t := *o.ActualDeliveryTime
		cp.ActualDeliveryTime = &t
	}
	cp.Cart = append([]Item(nil), o.Cart...)
	cp.History = append([]StatusEvent(nil), o.History...)
	return &cp
}
