package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/internal/cart"
	"github.com/growersmarket/farmdirect-backend/internal/inventory"
	"github.com/growersmarket/farmdirect-backend/internal/products"
	"github.com/growersmarket/farmdirect-backend/internal/shippingfee"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubGroupRepo struct {
	created []*models.OrderGroup
}

func (r *stubGroupRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubGroupRepo) CreateGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error) {
	group.ID = uuid.New()
	r.created = append(r.created, group)
	return group, nil
}

func (r *stubGroupRepo) FindGroupByID(ctx context.Context, groupID uuid.UUID) (*models.OrderGroup, error) {
	for _, g := range r.created {
		if g.ID == groupID {
			return g, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubGroupRepo) FindGroupByNumber(ctx context.Context, groupNumber string) (*models.OrderGroup, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubGroupRepo) ListGroupsByUser(ctx context.Context, userID uuid.UUID) ([]models.OrderGroup, error) {
	var out []models.OrderGroup
	for _, g := range r.created {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	return out, nil
}

type stubCartRepo struct {
	lines   map[uuid.UUID]*models.CartLine
	deleted []uuid.UUID
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{lines: map[uuid.UUID]*models.CartLine{}}
}

func (r *stubCartRepo) add(userID, productID uuid.UUID, qty int) uuid.UUID {
	id := uuid.New()
	r.lines[id] = &models.CartLine{ID: id, UserID: userID, ProductID: productID, Quantity: qty}
	return id
}

func (r *stubCartRepo) WithTx(tx *gorm.DB) cart.Repository { return r }

func (r *stubCartRepo) Create(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	line.ID = uuid.New()
	r.lines[line.ID] = line
	return line, nil
}

func (r *stubCartRepo) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return nil
}

func (r *stubCartRepo) Delete(ctx context.Context, lineID uuid.UUID) error {
	delete(r.lines, lineID)
	return nil
}

func (r *stubCartRepo) DeleteByIDs(ctx context.Context, lineIDs []uuid.UUID) error {
	for _, id := range lineIDs {
		delete(r.lines, id)
		r.deleted = append(r.deleted, id)
	}
	return nil
}

func (r *stubCartRepo) FindByID(ctx context.Context, lineID uuid.UUID) (*models.CartLine, error) {
	line, ok := r.lines[lineID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return line, nil
}

func (r *stubCartRepo) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartLine, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCartRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	var out []models.CartLine
	for _, line := range r.lines {
		if line.UserID == userID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (r *stubCartRepo) ListByIDsForUser(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) ([]models.CartLine, error) {
	var out []models.CartLine
	for _, id := range lineIDs {
		if line, ok := r.lines[id]; ok && line.UserID == userID {
			out = append(out, *line)
		}
	}
	return out, nil
}

type stubProductRepo struct {
	products map[uuid.UUID]models.Product
}

func (r *stubProductRepo) WithTx(tx *gorm.DB) products.Repository { return r }

func (r *stubProductRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	return product, nil
}

func (r *stubProductRepo) Update(ctx context.Context, productID uuid.UUID, updates map[string]any) error {
	return nil
}

func (r *stubProductRepo) FindByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if product, ok := r.products[productID]; ok {
		return &product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductRepo) FindByIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range productIDs {
		if product, ok := r.products[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

func (r *stubProductRepo) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

type stubFees struct {
	quote     shippingfee.Quote
	rule      *models.ShippingFeeRule
	computed  int
	lastArea  *uuid.UUID
	lastTotal int
}

func (f *stubFees) ComputeFee(ctx context.Context, deliveryAreaID *uuid.UUID, orderAmountCents int, weightKg *decimal.Decimal) (shippingfee.Quote, error) {
	f.computed++
	f.lastArea = deliveryAreaID
	f.lastTotal = orderAmountCents
	return f.quote, nil
}

func (f *stubFees) ResolveRule(ctx context.Context, ruleID uuid.UUID) (*models.ShippingFeeRule, error) {
	if f.rule != nil && f.rule.ID == ruleID {
		return f.rule, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping fee rule not found")
}

type stubReservation struct {
	short    map[uuid.UUID]int
	requests []inventory.ReservationRequest
}

func (r *stubReservation) Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error) {
	r.requests = requests
	results := make([]inventory.ReservationResult, len(requests))
	for i, req := range requests {
		results[i] = inventory.ReservationResult{LineID: req.LineID, ProductID: req.ProductID, Requested: req.Qty, Reserved: true}
		if available, ok := r.short[req.ProductID]; ok && available < req.Qty {
			results[i].Reserved = false
			results[i].Available = available
			results[i].Reason = fmt.Sprintf("requested %d, available %d", req.Qty, available)
		}
	}
	return results, nil
}

type fixture struct {
	svc      Service
	groups   *stubGroupRepo
	cart     *stubCartRepo
	products *stubProductRepo
	fees     *stubFees
	resv     *stubReservation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		groups:   &stubGroupRepo{},
		cart:     newStubCartRepo(),
		products: &stubProductRepo{products: map[uuid.UUID]models.Product{}},
		fees:     &stubFees{quote: shippingfee.Quote{FeeCents: 800}},
		resv:     &stubReservation{},
	}
	svc, err := NewService(stubTx{}, f.groups, f.cart, f.products, f.fees, f.resv, nil)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) addProduct(priceCents int, weightKg *decimal.Decimal) uuid.UUID {
	id := uuid.New()
	f.products.products[id] = models.Product{
		ID:           id,
		FarmerID:     uuid.New(),
		Name:         "product " + id.String()[:8],
		PriceCents:   priceCents,
		UnitWeightKg: weightKg,
		IsActive:     true,
	}
	return id
}

func shippingFixture() ShippingInput {
	return ShippingInput{
		ShippingAddress: "12 Orchard Lane",
		ContactPhone:    "555-0101",
		ReceiverName:    "R. Greene",
	}
}

func TestCreateFromCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := uuid.New()
	carrots := f.addProduct(450, nil)
	eggs := f.addProduct(600, nil)
	f.cart.add(buyer, carrots, 2)
	f.cart.add(buyer, eggs, 1)

	group, err := f.svc.CreateFromCart(context.Background(), Actor{UserID: buyer, Role: enums.MemberRoleBuyer}, CartCheckoutInput{
		ShippingInput: shippingFixture(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, group.OrderCount)
	assert.Equal(t, 1500, group.TotalProductCents)
	assert.Equal(t, 800, group.ShippingFeeCents)
	assert.Equal(t, 2300, group.TotalCents)
	assert.Len(t, group.Orders, 2)
	for _, order := range group.Orders {
		assert.Equal(t, enums.OrderStatusReadyToShip, order.Status)
		assert.Equal(t, enums.PaymentStatusUnpaid, order.PaymentStatus)
		assert.Zero(t, order.ShippingFeeCents)
	}
	assert.Len(t, f.cart.deleted, 2, "consumed cart lines removed")
	assert.Len(t, f.cart.lines, 0)
	assert.Regexp(t, `^FD\d{14}$`, group.GroupNumber)
}

func TestCreateFromCartSelectedLinesOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := uuid.New()
	carrots := f.addProduct(450, nil)
	eggs := f.addProduct(600, nil)
	keep := f.cart.add(buyer, carrots, 1)
	checkout := f.cart.add(buyer, eggs, 2)

	group, err := f.svc.CreateFromCart(context.Background(), Actor{UserID: buyer, Role: enums.MemberRoleBuyer}, CartCheckoutInput{
		ShippingInput: shippingFixture(),
		CartLineIDs:   []uuid.UUID{checkout},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, group.OrderCount)
	assert.Equal(t, 1200, group.TotalProductCents)
	_, kept := f.cart.lines[keep]
	assert.True(t, kept, "unselected line stays in the cart")
}

func TestCreateFromCartEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.CreateFromCart(context.Background(), Actor{UserID: uuid.New(), Role: enums.MemberRoleBuyer}, CartCheckoutInput{
		ShippingInput: shippingFixture(),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCreateFromCartCollectsAllShortages(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := uuid.New()
	carrots := f.addProduct(450, nil)
	eggs := f.addProduct(600, nil)
	milk := f.addProduct(300, nil)
	f.cart.add(buyer, carrots, 5)
	f.cart.add(buyer, eggs, 2)
	f.cart.add(buyer, milk, 1)
	f.resv.short = map[uuid.UUID]int{carrots: 1, eggs: 0}

	_, err := f.svc.CreateFromCart(context.Background(), Actor{UserID: buyer, Role: enums.MemberRoleBuyer}, CartCheckoutInput{
		ShippingInput: shippingFixture(),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	details, ok := typed.Details().([]inventory.ShortageDetail)
	require.True(t, ok)
	assert.Len(t, details, 2, "every shortage reported, not just the first")
	byProduct := make(map[uuid.UUID]inventory.ShortageDetail, len(details))
	for _, detail := range details {
		byProduct[detail.ProductID] = detail
	}
	assert.Equal(t, 1, byProduct[carrots].Available)
	assert.Equal(t, 5, byProduct[carrots].Requested)
	assert.NotEmpty(t, byProduct[carrots].Name)
	assert.Equal(t, 0, byProduct[eggs].Available)
	assert.Equal(t, 2, byProduct[eggs].Requested)
	assert.Empty(t, f.groups.created, "nothing persisted on failure")
	assert.Len(t, f.cart.lines, 3, "cart untouched on failure")
}

func TestCreateDirectRecomputesFee(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := uuid.New()
	product := f.addProduct(2500, nil)

	group, err := f.svc.CreateDirect(context.Background(), Actor{UserID: buyer, Role: enums.MemberRoleBuyer}, DirectCheckoutInput{
		ShippingInput: shippingFixture(),
		ProductID:     product,
		Quantity:      2,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.fees.computed, "fee priced server side")
	assert.Equal(t, 5000, f.fees.lastTotal)
	assert.Equal(t, 1, group.OrderCount)
	assert.Equal(t, 5800, group.TotalCents)
}

func TestCreateDirectExplicitRuleHonorsThreshold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ruleID := uuid.New()
	f.fees.rule = &models.ShippingFeeRule{
		ID:                         ruleID,
		BaseFeeCents:               900,
		FreeShippingThresholdCents: 4000,
		Enabled:                    true,
	}
	buyer := uuid.New()
	product := f.addProduct(2500, nil)

	group, err := f.svc.CreateDirect(context.Background(), Actor{UserID: buyer, Role: enums.MemberRoleBuyer}, DirectCheckoutInput{
		ShippingInput: ShippingInput{
			ShippingAddress:   "12 Orchard Lane",
			ContactPhone:      "555-0101",
			ReceiverName:      "R. Greene",
			ShippingFeeRuleID: &ruleID,
		},
		ProductID: product,
		Quantity:  2,
	})
	require.NoError(t, err)

	assert.Zero(t, f.fees.computed, "explicit rule skips the matcher")
	assert.Equal(t, 0, group.ShippingFeeCents, "threshold zeroes the fee")
	require.NotNil(t, group.ShippingFeeRuleID)
	assert.Equal(t, ruleID, *group.ShippingFeeRuleID)
}

func TestCreateDirectWeightSurchargeFlowsToQuote(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	buyer := uuid.New()
	weight := decimal.NewFromFloat(1.5)
	product := f.addProduct(1000, &weight)

	_, err := f.svc.CreateDirect(context.Background(), Actor{UserID: buyer, Role: enums.MemberRoleBuyer}, DirectCheckoutInput{
		ShippingInput: shippingFixture(),
		ProductID:     product,
		Quantity:      2,
	})
	require.NoError(t, err)
	require.Len(t, f.resv.requests, 1)
	assert.Equal(t, 2, f.resv.requests[0].Qty)
}

func TestCreateDirectInactiveProduct(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := uuid.New()
	f.products.products[id] = models.Product{ID: id, Name: "retired", PriceCents: 100, IsActive: false}

	_, err := f.svc.CreateDirect(context.Background(), Actor{UserID: uuid.New(), Role: enums.MemberRoleBuyer}, DirectCheckoutInput{
		ShippingInput: shippingFixture(),
		ProductID:     id,
		Quantity:      1,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

type countingTx struct {
	calls int
}

func (c *countingTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.calls++
	return fn(&gorm.DB{})
}

type collidingGroupRepo struct {
	stubGroupRepo
	collisions int
	numbers    []string
}

func (r *collidingGroupRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *collidingGroupRepo) CreateGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error) {
	r.numbers = append(r.numbers, group.GroupNumber)
	if r.collisions > 0 {
		r.collisions--
		return nil, errors.New(`duplicate key value violates unique constraint "order_groups_group_number_key"`)
	}
	return r.stubGroupRepo.CreateGroup(ctx, group)
}

func newRetryFixture(t *testing.T, collisions int) (*countingTx, *collidingGroupRepo, *stubProductRepo, Service) {
	t.Helper()
	tx := &countingTx{}
	groups := &collidingGroupRepo{collisions: collisions}
	productsRepo := &stubProductRepo{products: map[uuid.UUID]models.Product{}}
	svc, err := NewService(tx, groups, newStubCartRepo(), productsRepo, &stubFees{quote: shippingfee.Quote{FeeCents: 800}}, &stubReservation{}, nil)
	require.NoError(t, err)
	return tx, groups, productsRepo, svc
}

func TestCreateDirectRetriesCollidingGroupNumber(t *testing.T) {
	t.Parallel()

	tx, groups, productsRepo, svc := newRetryFixture(t, 2)
	product := uuid.New()
	productsRepo.products[product] = models.Product{ID: product, FarmerID: uuid.New(), Name: "pears", PriceCents: 400, IsActive: true}

	group, err := svc.CreateDirect(context.Background(), Actor{UserID: uuid.New(), Role: enums.MemberRoleBuyer}, DirectCheckoutInput{
		ShippingInput: shippingFixture(),
		ProductID:     product,
		Quantity:      1,
	})
	require.NoError(t, err)

	// A collision aborts the postgres transaction, so every attempt must run
	// in a fresh one.
	assert.Equal(t, 3, tx.calls)
	assert.Len(t, groups.numbers, 3)
	assert.Len(t, groups.created, 1)
	assert.Regexp(t, `^FD\d{14}$`, group.GroupNumber)
}

func TestCreateDirectGroupNumberExhaustion(t *testing.T) {
	t.Parallel()

	tx, groups, productsRepo, svc := newRetryFixture(t, groupNumberAttempts)
	product := uuid.New()
	productsRepo.products[product] = models.Product{ID: product, FarmerID: uuid.New(), Name: "plums", PriceCents: 300, IsActive: true}

	_, err := svc.CreateDirect(context.Background(), Actor{UserID: uuid.New(), Role: enums.MemberRoleBuyer}, DirectCheckoutInput{
		ShippingInput: shippingFixture(),
		ProductID:     product,
		Quantity:      1,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, groupNumberAttempts, tx.calls)
	assert.Empty(t, groups.created)
}

func TestGroupNumberFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	number := NewGroupNumber(now)
	assert.Regexp(t, `^FD20260830\d{6}$`, number)
}
