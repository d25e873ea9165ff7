package orders

import (
	"context"
	"testing"

	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Lifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	order, items := newPendingOrder()
	require.NoError(t, repo.CreatePendingOrder(ctx, order, items))
	assert.Equal(t, 1, repo.Count())
	assert.Equal(t, order.ID, items[0].OrderID)

	require.NoError(t, repo.LinkPaymentSession(ctx, order.ID, "cs_1"))
	assert.ErrorIs(t, repo.LinkPaymentSession(ctx, order.ID, "cs_2"), ErrSessionAlreadyLinked)

	tr, err := repo.TransitionStatus(ctx, order.ID, models.OrderStatusFailed)
	require.NoError(t, err)
	assert.True(t, tr.Applied)

	tr, err = repo.TransitionStatus(ctx, order.ID, models.OrderStatusPaid)
	require.NoError(t, err)
	assert.False(t, tr.Applied)
	assert.Equal(t, models.OrderStatusFailed, tr.Current)

	got, err := repo.GetOrderWithItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, got.Status)
	assert.Len(t, got.Items, 2)

	// Returned orders are copies.
	got.Status = models.OrderStatusPaid
	again, err := repo.GetOrderWithItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, again.Status)
}

func TestMemoryRepository_NotFound(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetOrderWithItems(ctx, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = repo.TransitionStatus(ctx, "nope", models.OrderStatusPaid)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = repo.TransitionStatus(ctx, "nope", models.OrderStatusPending)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}
