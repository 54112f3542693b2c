package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/internal/products"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOrderRepo struct {
	orders  map[uuid.UUID]*models.Order
	deleted []uuid.UUID
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (r *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubOrderRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *stubOrderRepo) FindForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *stubOrderRepo) FindByIDsForUpdate(ctx context.Context, orderIDs []uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, id := range orderIDs {
		if order, ok := r.orders[id]; ok {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := r.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyOrderUpdates(order, updates)
	return nil
}

func (r *stubOrderRepo) UpdateAll(ctx context.Context, orderIDs []uuid.UUID, updates map[string]any) error {
	for _, id := range orderIDs {
		if order, ok := r.orders[id]; ok {
			applyOrderUpdates(order, updates)
		}
	}
	return nil
}

func (r *stubOrderRepo) HardDelete(ctx context.Context, orderID uuid.UUID) error {
	delete(r.orders, orderID)
	r.deleted = append(r.deleted, orderID)
	return nil
}

func (r *stubOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range r.orders {
		if order.UserID == userID && !order.Deleted {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func applyOrderUpdates(order *models.Order, updates map[string]any) {
	for col, val := range updates {
		switch col {
		case "status":
			order.Status = val.(enums.OrderStatus)
		case "payment_status":
			order.PaymentStatus = val.(enums.PaymentStatus)
		case "paid_at":
			t := val.(time.Time)
			order.PaidAt = &t
		case "shipped_at":
			t := val.(time.Time)
			order.ShippedAt = &t
		case "completed_at":
			t := val.(time.Time)
			order.CompletedAt = &t
		case "cancelled_at":
			t := val.(time.Time)
			order.CancelledAt = &t
		case "refund_requested_at":
			t := val.(time.Time)
			order.RefundRequestedAt = &t
		case "cancel_actor_id":
			id := val.(uuid.UUID)
			order.CancelActorID = &id
		case "cancel_actor_type":
			at := val.(enums.CancelActorType)
			order.CancelActorType = &at
		case "cancel_reason":
			if reason, ok := val.(*string); ok {
				order.CancelReason = reason
			}
		case "refund_reason":
			reason := val.(string)
			order.RefundReason = &reason
		case "refund_note":
			if note, ok := val.(*string); ok {
				order.RefundNote = note
			}
		case "refund_prior_status":
			if val == nil {
				order.RefundPriorStatus = nil
			} else {
				status := val.(enums.OrderStatus)
				order.RefundPriorStatus = &status
			}
		case "delivery_info":
			info := val.(string)
			order.DeliveryInfo = &info
		case "delivery_contact":
			contact := val.(string)
			order.DeliveryContact = &contact
		case "delivery_phone":
			phone := val.(string)
			order.DeliveryPhone = &phone
		case "delivery_eta":
			t := val.(time.Time)
			order.DeliveryETA = &t
		case "deleted":
			order.Deleted = val.(bool)
		case "deleted_at":
			t := val.(time.Time)
			order.DeletedAt = &t
		}
	}
}

type stubProductsRepo struct {
	products map[uuid.UUID]models.Product
}

func (r *stubProductsRepo) WithTx(tx *gorm.DB) products.Repository { return r }

func (r *stubProductsRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	return product, nil
}

func (r *stubProductsRepo) Update(ctx context.Context, productID uuid.UUID, updates map[string]any) error {
	return nil
}

func (r *stubProductsRepo) FindByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if product, ok := r.products[productID]; ok {
		return &product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductsRepo) FindByIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range productIDs {
		if product, ok := r.products[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

func (r *stubProductsRepo) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

type stockCall struct {
	op        string
	productID uuid.UUID
	qty       int
}

type stubStock struct {
	calls []stockCall
}

func (s *stubStock) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	s.calls = append(s.calls, stockCall{op: "release", productID: productID, qty: qty})
	return nil
}

func (s *stubStock) Consume(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	s.calls = append(s.calls, stockCall{op: "consume", productID: productID, qty: qty})
	return nil
}

type orderFixture struct {
	svc      Service
	repo     *stubOrderRepo
	products *stubProductsRepo
	stock    *stubStock
	buyer    uuid.UUID
	farmer   uuid.UUID
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		repo:     newStubOrderRepo(),
		products: &stubProductsRepo{products: map[uuid.UUID]models.Product{}},
		stock:    &stubStock{},
		buyer:    uuid.New(),
		farmer:   uuid.New(),
	}
	svc, err := NewService(f.repo, f.products, stubTx{}, f.stock, nil, 100)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *orderFixture) addOrder(status enums.OrderStatus) *models.Order {
	productID := uuid.New()
	f.products.products[productID] = models.Product{ID: productID, FarmerID: f.farmer, Name: "greens", PriceCents: 500, IsActive: true}
	order := &models.Order{
		ID:             uuid.New(),
		UserID:         f.buyer,
		ProductID:      productID,
		Quantity:       2,
		UnitPriceCents: 500,
		TotalCents:     1000,
		Status:         status,
		PaymentStatus:  enums.PaymentStatusUnpaid,
	}
	f.repo.orders[order.ID] = order
	return order
}

func (f *orderFixture) buyerActor() Actor {
	return Actor{UserID: f.buyer, Role: enums.MemberRoleBuyer}
}

func (f *orderFixture) farmerActor() Actor {
	return Actor{UserID: f.farmer, Role: enums.MemberRoleFarmer}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
	return typed
}

func TestMarkPaid(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusReadyToShip)
	ctx := context.Background()

	require.NoError(t, f.svc.MarkPaid(ctx, f.buyerActor(), order.ID))
	stored := f.repo.orders[order.ID]
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.NotNil(t, stored.PaidAt)
	assert.Equal(t, enums.OrderStatusReadyToShip, stored.Status, "payment does not advance the state")

	// repeat confirmation is a no-op
	require.NoError(t, f.svc.MarkPaid(ctx, f.buyerActor(), order.ID))
}

func TestMarkPaidGuards(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusShipping)
	ctx := context.Background()

	assertCode(t, f.svc.MarkPaid(ctx, f.buyerActor(), order.ID), pkgerrors.CodeStateConflict)
	assertCode(t, f.svc.MarkPaid(ctx, Actor{UserID: uuid.New(), Role: enums.MemberRoleBuyer}, order.ID), pkgerrors.CodeForbidden)
	assertCode(t, f.svc.MarkPaid(ctx, f.buyerActor(), uuid.New()), pkgerrors.CodeNotFound)
}

func TestShipFillsDefaults(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusReadyToShip)
	ctx := context.Background()

	require.NoError(t, f.svc.Ship(ctx, f.farmerActor(), order.ID, ShipInput{}))

	stored := f.repo.orders[order.ID]
	assert.Equal(t, enums.OrderStatusShipping, stored.Status)
	require.NotNil(t, stored.DeliveryInfo)
	assert.Equal(t, "farm delivery", *stored.DeliveryInfo)
	require.NotNil(t, stored.ShippedAt)
	require.NotNil(t, stored.DeliveryETA)
	assert.WithinDuration(t, stored.ShippedAt.Add(72*time.Hour), *stored.DeliveryETA, time.Second)
}

func TestShipGuards(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusReadyToShip)
	ctx := context.Background()

	assertCode(t, f.svc.Ship(ctx, Actor{UserID: uuid.New(), Role: enums.MemberRoleFarmer}, order.ID, ShipInput{}), pkgerrors.CodeForbidden)

	shipped := f.addOrder(enums.OrderStatusShipping)
	typed := assertCode(t, f.svc.Ship(ctx, f.farmerActor(), shipped.ID, ShipInput{}), pkgerrors.CodeStateConflict)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusShipping, details["current_status"])
}

func TestCancelByBuyerReleasesStock(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusReadyToShip)
	reason := "changed my mind"
	ctx := context.Background()

	require.NoError(t, f.svc.Cancel(ctx, f.buyerActor(), order.ID, &reason))

	stored := f.repo.orders[order.ID]
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelActorType)
	assert.Equal(t, enums.CancelActorTypeUser, *stored.CancelActorType)
	require.NotNil(t, stored.CancelActorID)
	assert.Equal(t, f.buyer, *stored.CancelActorID)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, reason, *stored.CancelReason)

	require.Len(t, f.stock.calls, 1)
	assert.Equal(t, stockCall{op: "release", productID: order.ProductID, qty: 2}, f.stock.calls[0])
}

func TestCancelByFarmerWhileShipping(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusShipping)
	ctx := context.Background()

	require.NoError(t, f.svc.Cancel(ctx, f.farmerActor(), order.ID, nil))
	stored := f.repo.orders[order.ID]
	require.NotNil(t, stored.CancelActorType)
	assert.Equal(t, enums.CancelActorTypeFarmer, *stored.CancelActorType)
}

func TestCancelGuards(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	done := f.addOrder(enums.OrderStatusCompleted)
	ctx := context.Background()

	assertCode(t, f.svc.Cancel(ctx, f.buyerActor(), done.ID, nil), pkgerrors.CodeStateConflict)
	assert.Empty(t, f.stock.calls, "no stock movement on a failed cancel")

	open := f.addOrder(enums.OrderStatusReadyToShip)
	assertCode(t, f.svc.Cancel(ctx, Actor{UserID: uuid.New(), Role: enums.MemberRoleBuyer}, open.ID, nil), pkgerrors.CodeForbidden)
}

func TestCompleteConsumesReservation(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusShipping)
	ctx := context.Background()

	require.NoError(t, f.svc.Complete(ctx, f.buyerActor(), order.ID))

	stored := f.repo.orders[order.ID]
	assert.Equal(t, enums.OrderStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	require.Len(t, f.stock.calls, 1)
	assert.Equal(t, "consume", f.stock.calls[0].op)

	assertCode(t, f.svc.Complete(ctx, f.buyerActor(), order.ID), pkgerrors.CodeStateConflict)
}

func TestCompleteGuards(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusReadyToShip)
	ctx := context.Background()

	assertCode(t, f.svc.Complete(ctx, f.buyerActor(), order.ID), pkgerrors.CodeStateConflict)
	assertCode(t, f.svc.Complete(ctx, f.farmerActor(), order.ID), pkgerrors.CodeForbidden)
}

func TestRequestRefundRemembersPriorState(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusCompleted)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestRefund(ctx, f.buyerActor(), order.ID, "spoiled on arrival"))

	stored := f.repo.orders[order.ID]
	assert.Equal(t, enums.OrderStatusRefundRequested, stored.Status)
	require.NotNil(t, stored.RefundPriorStatus)
	assert.Equal(t, enums.OrderStatusCompleted, *stored.RefundPriorStatus)
	require.NotNil(t, stored.RefundReason)

	// a second request hits the state guard
	assertCode(t, f.svc.RequestRefund(ctx, f.buyerActor(), order.ID, "still waiting"), pkgerrors.CodeStateConflict)
}

func TestRequestRefundGuards(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusShipping)
	ctx := context.Background()

	assertCode(t, f.svc.RequestRefund(ctx, f.buyerActor(), order.ID, ""), pkgerrors.CodeValidation)

	open := f.addOrder(enums.OrderStatusReadyToShip)
	assertCode(t, f.svc.RequestRefund(ctx, f.buyerActor(), open.ID, "too early"), pkgerrors.CodeStateConflict)
}

func TestProcessRefundApprove(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusShipping)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestRefund(ctx, f.buyerActor(), order.ID, "damaged"))
	note := "confirmed with photos"
	require.NoError(t, f.svc.ProcessRefund(ctx, f.farmerActor(), order.ID, RefundDecisionInput{Approve: true, Note: &note}))

	stored := f.repo.orders[order.ID]
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	require.NotNil(t, stored.RefundNote)
	require.Len(t, f.stock.calls, 1)
	assert.Equal(t, "release", f.stock.calls[0].op)
}

func TestProcessRefundRejectRestoresPriorState(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusCompleted)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestRefund(ctx, f.buyerActor(), order.ID, "damaged"))
	require.NoError(t, f.svc.ProcessRefund(ctx, f.farmerActor(), order.ID, RefundDecisionInput{Approve: false}))

	stored := f.repo.orders[order.ID]
	assert.Equal(t, enums.OrderStatusCompleted, stored.Status)
	assert.Nil(t, stored.RefundPriorStatus)
	assert.Empty(t, f.stock.calls, "rejection leaves stock untouched")
}

func TestProcessRefundGuards(t *testing.T) {
	t.Parallel()

	f := newOrderFixture(t)
	order := f.addOrder(enums.OrderStatusShipping)
	ctx := context.Background()

	assertCode(t, f.svc.ProcessRefund(ctx, f.farmerActor(), order.ID, RefundDecisionInput{Approve: true}), pkgerrors.CodeStateConflict)

	require.NoError(t, f.svc.RequestRefund(ctx, f.buyerActor(), order.ID, "damaged"))
	assertCode(t, f.svc.ProcessRefund(ctx, f.buyerActor(), order.ID, RefundDecisionInput{Approve: true}), pkgerrors.CodeForbidden)
}
