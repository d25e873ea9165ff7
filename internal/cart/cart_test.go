package cart

import (
	"testing"

	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tomatoes(qty int) models.CartLineItem {
	return models.CartLineItem{
		ID:       "p-tomato",
		Name:     "Tomatoes",
		Price:    decimal.RequireFromString("45"),
		Unit:     "kg",
		Farmer:   models.Farmer{Name: "Ramesh", Location: "Nashik"},
		Quantity: qty,
	}
}

func eggs(qty int) models.CartLineItem {
	return models.CartLineItem{
		ID:       "p-eggs",
		Name:     "Eggs",
		Price:    decimal.RequireFromString("180"),
		Unit:     "dozen",
		Farmer:   models.Farmer{Name: "Sita", Location: "Pune"},
		Quantity: qty,
	}
}

func TestReduce_AddMergesSameProduct(t *testing.T) {
	c := Reduce(Cart{}, Add(tomatoes(1)))
	c = Reduce(c, Add(tomatoes(1)))
	c = Reduce(c, Add(eggs(1)))

	require.Len(t, c.Items, 2)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 3, c.TotalItems())
	assert.True(t, decimal.RequireFromString("270").Equal(c.TotalPrice()))
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	before := Reduce(Cart{}, Add(tomatoes(1)))

	after := Reduce(before, Add(tomatoes(4)))

	assert.Equal(t, 1, before.Items[0].Quantity)
	assert.Equal(t, 5, after.Items[0].Quantity)
}

func TestReduce_UpdateQuantity(t *testing.T) {
	c := Reduce(Cart{}, Add(tomatoes(1)))
	c = Reduce(c, Add(eggs(1)))

	c = Reduce(c, UpdateQuantity("p-eggs", 3))
	assert.Equal(t, 4, c.TotalItems())

	c = Reduce(c, UpdateQuantity("p-eggs", 0))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p-tomato", c.Items[0].ID)
}

func TestReduce_RemoveAndClear(t *testing.T) {
	c := Reduce(Cart{ID: "c1"}, Add(tomatoes(2)))
	c = Reduce(c, Add(eggs(1)))

	c = Reduce(c, Remove("p-tomato"))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "c1", c.ID)

	c = Reduce(c, Clear())
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.TotalItems())
	assert.True(t, c.TotalPrice().IsZero())
}

func TestReduce_UnknownProductIsNoop(t *testing.T) {
	c := Reduce(Cart{}, Add(tomatoes(2)))

	assert.Equal(t, c, Reduce(c, Remove("p-missing")))
	assert.Equal(t, c, Reduce(c, UpdateQuantity("p-missing", 7)))
}
