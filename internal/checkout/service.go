package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/internal/cart"
	"github.com/growersmarket/farmdirect-backend/internal/inventory"
	"github.com/growersmarket/farmdirect-backend/internal/products"
	"github.com/growersmarket/farmdirect-backend/internal/shippingfee"
	"github.com/growersmarket/farmdirect-backend/pkg/db"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/metrics"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const groupNumberAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type feeQuoter interface {
	ComputeFee(ctx context.Context, deliveryAreaID *uuid.UUID, orderAmountCents int, weightKg *decimal.Decimal) (shippingfee.Quote, error)
	ResolveRule(ctx context.Context, ruleID uuid.UUID) (*models.ShippingFeeRule, error)
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error)
}

type ledgerEngine struct{}

func (ledgerEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error) {
	return inventory.Reserve(ctx, tx, requests)
}

// Actor identifies the authenticated buyer placing the order.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// ShippingInput carries the delivery details shared by both checkout paths.
type ShippingInput struct {
	ShippingAddress   string
	ContactPhone      string
	ReceiverName      string
	DeliveryAreaID    *uuid.UUID
	ShippingFeeRuleID *uuid.UUID
}

// CartCheckoutInput creates a group from the buyer's cart. Empty CartLineIDs
// means the whole cart.
type CartCheckoutInput struct {
	ShippingInput
	CartLineIDs []uuid.UUID
}

// DirectCheckoutInput creates a single-order group without touching the cart.
type DirectCheckoutInput struct {
	ShippingInput
	ProductID uuid.UUID
	Quantity  int
}

// Service assembles order groups from carts or direct purchases.
type Service interface {
	CreateFromCart(ctx context.Context, actor Actor, input CartCheckoutInput) (*models.OrderGroup, error)
	CreateDirect(ctx context.Context, actor Actor, input DirectCheckoutInput) (*models.OrderGroup, error)
	GetGroup(ctx context.Context, actor Actor, groupID uuid.UUID) (*models.OrderGroup, error)
	ListGroups(ctx context.Context, actor Actor) ([]models.OrderGroup, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	cartRepo    cart.Repository
	products    products.Repository
	fees        feeQuoter
	reservation reservationRunner
	metrics     *metrics.OrderMetrics
	now         func() time.Time
}

// NewService builds the checkout service. metrics may be nil.
func NewService(
	tx txRunner,
	repo Repository,
	cartRepo cart.Repository,
	products products.Repository,
	fees feeQuoter,
	reservation reservationRunner,
	m *metrics.OrderMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order group repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if fees == nil {
		return nil, fmt.Errorf("fee quoter required")
	}
	if reservation == nil {
		reservation = ledgerEngine{}
	}
	return &service{
		tx:          tx,
		repo:        repo,
		cartRepo:    cartRepo,
		products:    products,
		fees:        fees,
		reservation: reservation,
		metrics:     m,
		now:         time.Now,
	}, nil
}

// checkoutLine is a resolved purchase line. CartLineID is nil on the direct
// path.
type checkoutLine struct {
	CartLineID *uuid.UUID
	ProductID  uuid.UUID
	Qty        int
}

func (s *service) CreateFromCart(ctx context.Context, actor Actor, input CartCheckoutInput) (*models.OrderGroup, error) {
	if err := validateShipping(actor, input.ShippingInput); err != nil {
		return nil, err
	}

	var group *models.OrderGroup
	err := s.withGroupTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)

		var cartLines []models.CartLine
		var err error
		if len(input.CartLineIDs) > 0 {
			cartLines, err = cartRepo.ListByIDsForUser(ctx, actor.UserID, input.CartLineIDs)
			if err == nil && len(cartLines) != len(input.CartLineIDs) {
				return pkgerrors.New(pkgerrors.CodeValidation, "one or more cart lines not found")
			}
		} else {
			cartLines, err = cartRepo.ListByUser(ctx, actor.UserID)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
		}
		if len(cartLines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
		}

		lines := make([]checkoutLine, len(cartLines))
		consumed := make([]uuid.UUID, len(cartLines))
		for i, cl := range cartLines {
			lineID := cl.ID
			lines[i] = checkoutLine{CartLineID: &lineID, ProductID: cl.ProductID, Qty: cl.Quantity}
			consumed[i] = cl.ID
		}

		group, err = s.assemble(ctx, tx, actor, lines, input.ShippingInput)
		if err != nil {
			return err
		}
		if err := cartRepo.DeleteByIDs(ctx, consumed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart lines")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncGroupCreated("cart")
	return group, nil
}

func (s *service) CreateDirect(ctx context.Context, actor Actor, input DirectCheckoutInput) (*models.OrderGroup, error) {
	if err := validateShipping(actor, input.ShippingInput); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var group *models.OrderGroup
	err := s.withGroupTx(ctx, func(tx *gorm.DB) error {
		var err error
		lines := []checkoutLine{{ProductID: input.ProductID, Qty: input.Quantity}}
		group, err = s.assemble(ctx, tx, actor, lines, input.ShippingInput)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncGroupCreated("direct")
	return group, nil
}

// assemble validates stock, prices the shipment and writes the group with one
// order per line. The shipping fee is always recomputed here; callers never
// supply an amount, at most a rule id.
func (s *service) assemble(ctx context.Context, tx *gorm.DB, actor Actor, lines []checkoutLine, shipping ShippingInput) (*models.OrderGroup, error) {
	productIDs := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		productIDs[i] = line.ProductID
	}
	loaded, err := s.products.WithTx(tx).FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(loaded))
	for i := range loaded {
		byID[loaded[i].ID] = &loaded[i]
	}

	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": line.ProductID, "name": product.Name})
		}
	}

	requests := make([]inventory.ReservationRequest, len(lines))
	for i, line := range lines {
		var lineID uuid.UUID
		if line.CartLineID != nil {
			lineID = *line.CartLineID
		}
		requests[i] = inventory.ReservationRequest{LineID: lineID, ProductID: line.ProductID, Qty: line.Qty}
	}
	results, err := s.reservation.Reserve(ctx, tx, requests)
	if err != nil {
		return nil, err
	}

	var shortages []inventory.ShortageDetail
	for _, result := range results {
		if result.Reserved {
			continue
		}
		detail := inventory.ShortageDetail{
			ProductID: result.ProductID,
			Available: result.Available,
			Requested: result.Requested,
		}
		if product, ok := byID[result.ProductID]; ok {
			detail.Name = product.Name
		}
		shortages = append(shortages, detail)
	}
	if len(shortages) > 0 {
		s.metrics.IncStockRejection()
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for one or more items").
			WithDetails(shortages)
	}

	productTotal := 0
	totalWeight := decimal.Zero
	for _, line := range lines {
		product := byID[line.ProductID]
		productTotal += product.PriceCents * line.Qty
		if product.UnitWeightKg != nil {
			totalWeight = totalWeight.Add(product.UnitWeightKg.Mul(decimal.NewFromInt(int64(line.Qty))))
		}
	}
	var weight *decimal.Decimal
	if totalWeight.IsPositive() {
		weight = &totalWeight
	}

	feeCents, ruleID, err := s.priceShipping(ctx, shipping, productTotal, weight)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, len(lines))
	for i, line := range lines {
		product := byID[line.ProductID]
		orders[i] = models.Order{
			UserID:         actor.UserID,
			ProductID:      line.ProductID,
			Quantity:       line.Qty,
			UnitPriceCents: product.PriceCents,
			TotalCents:     product.PriceCents * line.Qty,
			Status:         enums.OrderStatusReadyToShip,
			PaymentStatus:  enums.PaymentStatusUnpaid,
		}
	}

	group := &models.OrderGroup{
		UserID:            actor.UserID,
		OrderCount:        len(lines),
		TotalProductCents: productTotal,
		ShippingFeeCents:  feeCents,
		TotalCents:        productTotal + feeCents,
		ShippingAddress:   shipping.ShippingAddress,
		ContactPhone:      shipping.ContactPhone,
		ReceiverName:      shipping.ReceiverName,
		DeliveryAreaID:    shipping.DeliveryAreaID,
		ShippingFeeRuleID: ruleID,
		Orders:            orders,
	}

	group.GroupNumber = NewGroupNumber(s.now())
	if _, err := s.repo.WithTx(tx).CreateGroup(ctx, group); err != nil {
		if db.IsUniqueViolation(err, "") {
			// Left unwrapped so withGroupTx can recognize the collision.
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order group")
	}
	return group, nil
}

// withGroupTx runs fn in a transaction, retrying with a fresh group number
// when the generated one collides. Postgres aborts the whole transaction on
// the unique violation, so the retry cannot stay inside it.
func (s *service) withGroupTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < groupNumberAttempts; attempt++ {
		err = s.tx.WithTx(ctx, fn)
		if err == nil || !db.IsUniqueViolation(err, "") {
			return err
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate group number")
}

func (s *service) priceShipping(ctx context.Context, shipping ShippingInput, productTotal int, weight *decimal.Decimal) (int, *uuid.UUID, error) {
	if shipping.ShippingFeeRuleID != nil {
		rule, err := s.fees.ResolveRule(ctx, *shipping.ShippingFeeRuleID)
		if err != nil {
			return 0, nil, err
		}
		ruleID := rule.ID
		return shippingfee.FeeForRule(rule, productTotal, weight), &ruleID, nil
	}
	quote, err := s.fees.ComputeFee(ctx, shipping.DeliveryAreaID, productTotal, weight)
	if err != nil {
		return 0, nil, err
	}
	return quote.FeeCents, quote.RuleID, nil
}

func (s *service) GetGroup(ctx context.Context, actor Actor, groupID uuid.UUID) (*models.OrderGroup, error) {
	group, err := s.repo.FindGroupByID(ctx, groupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order group")
	}
	if group.UserID != actor.UserID && actor.Role != enums.MemberRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order group does not belong to caller")
	}
	return group, nil
}

func (s *service) ListGroups(ctx context.Context, actor Actor) ([]models.OrderGroup, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	groups, err := s.repo.ListGroupsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order groups")
	}
	return groups, nil
}

func validateShipping(actor Actor, shipping ShippingInput) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if shipping.ShippingAddress == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if shipping.ContactPhone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact phone required")
	}
	if shipping.ReceiverName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receiver name required")
	}
	return nil
}
