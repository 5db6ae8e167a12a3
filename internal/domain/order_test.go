package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_SnapshotsPricesAndTotals(t *testing.T) {
	s := storeA()
	x := productFrom(s, "x", 10000, 10)
	y := withPromo(productFrom(s, "y", 5000, 10), 4000)

	cart := NewCart("cust-1").AddItem(x, 2, ModeDelivery)
	cart = cart.AddItem(y, 1, ModeDelivery)

	order := NewOrder("order-1", cart)

	require.Len(t, order.Lines, 2)
	assert.Equal(t, int64(10000), order.Lines[0].UnitPriceCents)
	assert.Equal(t, int64(20000), order.Lines[0].SubtotalCents)
	assert.Equal(t, int64(4000), order.Lines[1].UnitPriceCents)
	assert.Equal(t, int64(24000), order.SubtotalCents)
	assert.Equal(t, int64(1500), order.DeliveryFeeCents)
	assert.Equal(t, int64(25500), order.TotalCents)
	assert.Equal(t, "store-a", order.StoreID)
	assert.Equal(t, StatusPending, order.Status)
}

func TestNewOrder_PickupStartsReserved(t *testing.T) {
	p := productFrom(storeA(), "x", 10000, 5)
	cart := NewCart("cust-1").AddItem(p, 1, ModePickup)

	order := NewOrder("order-1", cart)

	assert.Equal(t, StatusReserved, order.Status)
	assert.Equal(t, int64(0), order.DeliveryFeeCents)
}

func TestOrderStatus_Transitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusConfirmed))
	assert.True(t, StatusReserved.CanTransition(StatusExpired))
	assert.True(t, StatusShipped.CanTransition(StatusDelivered))
	assert.True(t, StatusPaidInStore.CanTransition(StatusCompleted))

	assert.False(t, StatusPending.CanTransition(StatusDelivered))
	assert.False(t, StatusCompleted.CanTransition(StatusCanceled))
	assert.False(t, StatusCanceled.CanTransition(StatusPending))
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.False(t, StatusReserved.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
}
