package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as plain JSON numbers between the storefront and the API.
	decimal.MarshalJSONWithoutQuotes = true
}

// Farmer is the seller attribution carried on every cart line.
type Farmer struct {
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Rating   float64 `json:"rating,omitempty"`
}

// CartLineItem is one product in the shopper's cart.
// It is copied by value into checkout requests.
type CartLineItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"` // Unit price in major currency units
	Unit     string          `json:"unit"`  // e.g., kg, dozen
	Image    string          `json:"image"`
	Farmer   Farmer          `json:"farmer"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns price * quantity for the line.
func (i CartLineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
