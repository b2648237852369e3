package order

import "time"

// CreateOrderItem payload de ítem.
// swagger:model CreateOrderItem
type CreateOrderItem struct {
	MenuItemID string `json:"menu_item_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	ItemName   string `json:"item_name"    example:"Margherita"`
	Quantity   int    `json:"quantity"     example:"2"`
	Price      string `json:"price"        example:"8.99"`
	Comment    string `json:"comment"      example:"no basil"`
}

// CreateOrderRequest payload de creación de orden.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	UserID             string            `json:"user_id"             example:"b2f5ff47-2b1e-4f22-8a96-5f3c1f2f2e7b"`
	RestaurantID       string            `json:"restaurant_id"       example:"3b0c9a9e-1f0e-4f0e-a5f5-6a1f2e7d9c11"`
	DeliveryAddressID  string            `json:"delivery_address_id" example:"a1"`
	DriverID           *string           `json:"driver_id"`
	Price              string            `json:"price"               example:"24.48"`
	Discount           string            `json:"discount"            example:"0.00"`
	FinalPrice         string            `json:"final_price"         example:"24.48"`
	Comment            string            `json:"comment"`
	Status             Status            `json:"status"              example:"pending"`
	ActualDeliveryTime *time.Time        `json:"actual_delivery_time"`
	Cart               []CreateOrderItem `json:"cart"`
}

// UpdateOrderRequest partial update. Nil fields are left untouched.
// swagger:model UpdateOrderRequest
type UpdateOrderRequest struct {
	Status             *Status    `json:"status,omitempty"               example:"accepted"`
	Comment            *string    `json:"comment,omitempty"`
	ActualDeliveryTime *time.Time `json:"actual_delivery_time,omitempty"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	Error string `json:"error" example:"order not found"`
}

// ListResponse represents a page of orders.
// swagger:model
type ListResponse struct {
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Items  []Order `json:"items"`
}
