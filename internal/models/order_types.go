package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the settlement state of an order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// CanTransitionTo allows only pending -> paid and pending -> failed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && next.IsTerminal()
}

func (s OrderStatus) String() string {
	return string(s)
}

// Address is the delivery address snapshot stored with an order.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

// Order is the model for the 'orders' table.
// JSON field names follow the row format the storefront already consumes.
type Order struct {
	ID               string          `json:"id" db:"id"`
	UserID           *string         `json:"user_id" db:"user_id"` // nil for guest checkout
	CustomerEmail    string          `json:"customer_email" db:"customer_email"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	Currency         string          `json:"currency" db:"currency"`
	Status           OrderStatus     `json:"status" db:"status"`
	DeliveryAddress  *Address        `json:"delivery_address" db:"delivery_address"`
	PaymentSessionID *string         `json:"payment_session_id" db:"payment_session_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`

	Items []OrderLineItem `json:"order_items,omitempty"`
}

// OrderLineItem is the model for the 'order_items' table.
// Product and farmer fields are snapshots taken at checkout time.
type OrderLineItem struct {
	ID             int64           `json:"id" db:"id"`
	OrderID        string          `json:"order_id" db:"order_id"`
	ProductID      string          `json:"product_id" db:"product_id"`
	ProductName    string          `json:"product_name" db:"product_name"`
	ProductImage   string          `json:"product_image" db:"product_image"`
	FarmerName     string          `json:"farmer_name" db:"farmer_name"`
	FarmerLocation string          `json:"farmer_location" db:"farmer_location"`
	Price          decimal.Decimal `json:"price" db:"price"` // Unit price at the time of purchase
	Quantity       int             `json:"quantity" db:"quantity"`
	Unit           string          `json:"unit" db:"unit"`
	Subtotal       decimal.Decimal `json:"subtotal" db:"subtotal"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// NewOrderLineItem snapshots a cart line into an order line.
func NewOrderLineItem(item CartLineItem) OrderLineItem {
	return OrderLineItem{
		ProductID:      item.ID,
		ProductName:    item.Name,
		ProductImage:   item.Image,
		FarmerName:     item.Farmer.Name,
		FarmerLocation: item.Farmer.Location,
		Price:          item.Price,
		Quantity:       item.Quantity,
		Unit:           item.Unit,
		Subtotal:       item.Subtotal(),
	}
}
