package cart

import (
	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/shopspring/decimal"
)

// Cart is the shopper's cart. Totals are always derived from Items.
type Cart struct {
	ID    string                `json:"id"`
	Items []models.CartLineItem `json:"items"`
}

// TotalItems is the sum of quantities.
func (c Cart) TotalItems() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// TotalPrice is the sum of line subtotals.
func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ActionType names a cart mutation.
type ActionType string

const (
	ActionAdd            ActionType = "add"
	ActionRemove         ActionType = "remove"
	ActionUpdateQuantity ActionType = "update_quantity"
	ActionClear          ActionType = "clear"
)

// Action is one cart mutation. Item is used by add, ProductID and
// Quantity by remove and update.
type Action struct {
	Type      ActionType
	Item      models.CartLineItem
	ProductID string
	Quantity  int
}

func Add(item models.CartLineItem) Action {
	return Action{Type: ActionAdd, Item: item}
}

func Remove(productID string) Action {
	return Action{Type: ActionRemove, ProductID: productID}
}

func UpdateQuantity(productID string, quantity int) Action {
	return Action{Type: ActionUpdateQuantity, ProductID: productID, Quantity: quantity}
}

func Clear() Action {
	return Action{Type: ActionClear}
}

// Reduce applies an action and returns the next cart.
// The input cart is never modified.
func Reduce(c Cart, a Action) Cart {
	next := Cart{ID: c.ID, Items: make([]models.CartLineItem, 0, len(c.Items)+1)}

	switch a.Type {
	case ActionAdd:
		if a.Item.Quantity <= 0 {
			a.Item.Quantity = 1
		}
		merged := false
		for _, item := range c.Items {
			if item.ID == a.Item.ID {
				item.Quantity += a.Item.Quantity
				merged = true
			}
			next.Items = append(next.Items, item)
		}
		if !merged {
			next.Items = append(next.Items, a.Item)
		}

	case ActionRemove:
		for _, item := range c.Items {
			if item.ID != a.ProductID {
				next.Items = append(next.Items, item)
			}
		}

	case ActionUpdateQuantity:
		for _, item := range c.Items {
			if item.ID == a.ProductID {
				if a.Quantity <= 0 {
					continue
				}
				item.Quantity = a.Quantity
			}
			next.Items = append(next.Items, item)
		}

	case ActionClear:
		// empty

	default:
		next.Items = append(next.Items, c.Items...)
	}

	return next
}
