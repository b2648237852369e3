package product

import "time"

// Product is a menu item. The cart and placed orders only ever copy from it.
type Product struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	// We store price as a string to avoid rounding errors (NUMERIC in Postgres)
	Price     string    `json:"price"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: not found
	Error string `json:"error"`
}

// ListResponse represents the paginated response of products.
// swagger:model
type ListResponse struct {
	// search query applied
	Q string `json:"q,omitempty"`
	// restaurant filter applied
	RestaurantID string `json:"restaurant_id,omitempty"`
	// limit applied
	Limit int `json:"limit"`
	// offset applied
	Offset int `json:"offset"`
	// items found
	Items []Product `json:"items"`
}

// CreateProductRequest payload of creation.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	RestaurantID string `json:"restaurant_id" example:"3b0c9a9e-1f0e-4f0e-a5f5-6a1f2e7d9c11"`
	Name         string `json:"name"          example:"Margherita"`
	Description  string `json:"description"   example:"Tomato, mozzarella, basil"`
	Price        string `json:"price"         example:"8.99"`
	Image        string `json:"image"         example:"https://cdn.example.com/margherita.jpg"`
}

// UpdateProductRequest payload of partial update. Empty fields are left untouched.
// swagger:model UpdateProductRequest
type UpdateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Image       string `json:"image"`
}
