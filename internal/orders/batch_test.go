package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestBatchShip(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	ctx := context.Background()
	first := f.addOrder(enums.OrderStatusReadyToShip)
	second := f.addOrder(enums.OrderStatusReadyToShip)
	third := f.addOrder(enums.OrderStatusReadyToShip)

	ids := []uuid.UUID{first.ID, second.ID, third.ID}
	require.NoError(t, f.svc.BatchShip(ctx, f.farmerActor(), ids, ShipInput{}))

	var shippedAt = f.repo.orders[first.ID].ShippedAt
	require.NotNil(t, shippedAt)
	for _, id := range ids {
		stored := f.repo.orders[id]
		assert.Equal(t, enums.OrderStatusShipping, stored.Status)
		require.NotNil(t, stored.ShippedAt)
		assert.Equal(t, *shippedAt, *stored.ShippedAt, "one shared shipment timestamp")
		require.NotNil(t, stored.DeliveryInfo)
		assert.Equal(t, "farm delivery", *stored.DeliveryInfo)
	}
}

func TestBatchShipSizeLimits(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	ctx := context.Background()

	assertCode(t, f.svc.BatchShip(ctx, f.farmerActor(), nil, ShipInput{}), pkgerrors.CodeValidation)

	tooMany := make([]uuid.UUID, 101)
	for i := range tooMany {
		tooMany[i] = uuid.New()
	}
	assertCode(t, f.svc.BatchShip(ctx, f.farmerActor(), tooMany, ShipInput{}), pkgerrors.CodeValidation)
}

func TestBatchShipRejectsDuplicates(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.addOrder(enums.OrderStatusReadyToShip)

	err := f.svc.BatchShip(ctx, f.farmerActor(), []uuid.UUID{order.ID, order.ID}, ShipInput{})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestBatchShipCollectsEveryViolation(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	ctx := context.Background()

	ok := f.addOrder(enums.OrderStatusReadyToShip)
	alreadyShipped := f.addOrder(enums.OrderStatusShipping)
	missing := uuid.New()

	foreign := f.addOrder(enums.OrderStatusReadyToShip)
	otherFarmer := uuid.New()
	product := f.products.products[foreign.ProductID]
	product.FarmerID = otherFarmer
	f.products.products[foreign.ProductID] = product

	err := f.svc.BatchShip(ctx, f.farmerActor(), []uuid.UUID{ok.ID, alreadyShipped.ID, missing, foreign.ID}, ShipInput{})
	typed := assertCode(t, err, pkgerrors.CodeValidation)

	violations := multierr.Errors(typed.Unwrap())
	assert.Len(t, violations, 3, "every violation reported")

	// nothing moved, including the valid order
	assert.Equal(t, enums.OrderStatusReadyToShip, f.repo.orders[ok.ID].Status)
	assert.Nil(t, f.repo.orders[ok.ID].ShippedAt)
}
