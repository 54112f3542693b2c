package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/internal/inventory"
	"github.com/growersmarket/farmdirect-backend/internal/products"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/metrics"
	"gorm.io/gorm"
)

const (
	defaultDeliveryInfo = "farm delivery"
	defaultETAHours     = 72
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockLedger abstracts the inventory mutations the state machine performs.
type stockLedger interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Consume(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type ledger struct{}

func (ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return inventory.Release(ctx, tx, productID, qty)
}

func (ledger) Consume(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return inventory.Consume(ctx, tx, productID, qty)
}

// Service drives order lifecycle transitions.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	ListMine(ctx context.Context, actor Actor) ([]models.Order, error)
	ListForFarmer(ctx context.Context, actor Actor) ([]models.Order, error)
	MarkPaid(ctx context.Context, actor Actor, orderID uuid.UUID) error
	Ship(ctx context.Context, actor Actor, orderID uuid.UUID, input ShipInput) error
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason *string) error
	Complete(ctx context.Context, actor Actor, orderID uuid.UUID) error
	RequestRefund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error
	ProcessRefund(ctx context.Context, actor Actor, orderID uuid.UUID, input RefundDecisionInput) error
	Delete(ctx context.Context, actor Actor, orderID uuid.UUID) error
	BatchShip(ctx context.Context, actor Actor, orderIDs []uuid.UUID, input ShipInput) error
}

type service struct {
	repo     Repository
	products products.Repository
	tx       txRunner
	stock    stockLedger
	metrics  *metrics.OrderMetrics
	batchCap int
	now      func() time.Time
}

// NewService builds an order service. metrics may be nil; batchCap bounds
// BatchShip.
func NewService(repo Repository, productsRepo products.Repository, tx txRunner, stock stockLedger, m *metrics.OrderMetrics, batchCap int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		stock = ledger{}
	}
	if batchCap <= 0 {
		return nil, fmt.Errorf("batch cap must be positive")
	}
	return &service{
		repo:     repo,
		products: productsRepo,
		tx:       tx,
		stock:    stock,
		metrics:  m,
		batchCap: batchCap,
		now:      time.Now,
	}, nil
}

func stateConflict(current enums.OrderStatus, message string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"current_status": current})
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !s.canView(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return order, nil
}

func (s *service) canView(order *models.Order, actor Actor) bool {
	if actor.Role == enums.MemberRoleAdmin {
		return true
	}
	if order.UserID == actor.UserID && !order.Deleted {
		return true
	}
	return order.Product != nil && order.Product.FarmerID == actor.UserID
}

func (s *service) ListMine(ctx context.Context, actor Actor) ([]models.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) ListForFarmer(ctx context.Context, actor Actor) ([]models.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.MemberRoleFarmer && actor.Role != enums.MemberRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer role required")
	}
	orders, err := s.repo.ListByFarmer(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farmer orders")
	}
	return orders, nil
}

// MarkPaid records a cash-on-delivery style payment confirmation. It only
// flips the payment flag; the order state is untouched.
func (s *service) MarkPaid(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	err := s.transition(ctx, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm payment")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		if order.Status != enums.OrderStatusReadyToShip {
			return stateConflict(order.Status, "payment can only be confirmed before shipment")
		}
		now := s.now()
		return repo.Update(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"paid_at":        now,
		})
	})
	if err != nil {
		return err
	}
	s.metrics.IncTransition("mark_paid")
	return nil
}

func (s *service) Ship(ctx context.Context, actor Actor, orderID uuid.UUID, input ShipInput) error {
	err := s.transition(ctx, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.requireProductOwner(ctx, tx, order, actor); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusReadyToShip {
			return stateConflict(order.Status, "only orders awaiting shipment can be shipped")
		}
		now := s.now()
		updates := shipUpdates(input, now)
		return repo.Update(ctx, order.ID, updates)
	})
	if err != nil {
		return err
	}
	s.metrics.IncTransition("ship")
	return nil
}

// shipUpdates fills delivery defaults for fields the caller left blank.
func shipUpdates(input ShipInput, now time.Time) map[string]any {
	info := defaultDeliveryInfo
	if input.DeliveryInfo != nil && *input.DeliveryInfo != "" {
		info = *input.DeliveryInfo
	}
	eta := now.Add(defaultETAHours * time.Hour)
	if input.DeliveryETA != nil {
		eta = *input.DeliveryETA
	}
	updates := map[string]any{
		"status":        enums.OrderStatusShipping,
		"shipped_at":    now,
		"delivery_info": info,
		"delivery_eta":  eta,
	}
	if input.DeliveryContact != nil {
		updates["delivery_contact"] = *input.DeliveryContact
	}
	if input.DeliveryPhone != nil {
		updates["delivery_phone"] = *input.DeliveryPhone
	}
	return updates
}

func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason *string) error {
	err := s.transition(ctx, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		actorType, err := s.cancelActorType(ctx, tx, order, actor)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusReadyToShip && order.Status != enums.OrderStatusShipping {
			return stateConflict(order.Status, "order can no longer be cancelled")
		}
		if err := s.stock.Release(ctx, tx, order.ProductID, order.Quantity); err != nil {
			return err
		}
		now := s.now()
		return repo.Update(ctx, order.ID, map[string]any{
			"status":            enums.OrderStatusCancelled,
			"cancelled_at":      now,
			"cancel_actor_id":   actor.UserID,
			"cancel_actor_type": actorType,
			"cancel_reason":     reason,
		})
	})
	if err != nil {
		return err
	}
	s.metrics.IncTransition("cancel")
	return nil
}

// cancelActorType resolves who is cancelling relative to the order. Buyers
// take precedence when they also own the product.
func (s *service) cancelActorType(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor) (enums.CancelActorType, error) {
	if order.UserID == actor.UserID {
		return enums.CancelActorTypeUser, nil
	}
	product, err := s.loadProduct(ctx, tx, order.ProductID)
	if err != nil {
		return "", err
	}
	if product.FarmerID == actor.UserID {
		return enums.CancelActorTypeFarmer, nil
	}
	if actor.Role == enums.MemberRoleAdmin {
		return enums.CancelActorTypeAdmin, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "caller cannot cancel this order")
}

func (s *service) Complete(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	err := s.transition(ctx, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm receipt")
		}
		if order.Status != enums.OrderStatusShipping {
			return stateConflict(order.Status, "only shipping orders can be completed")
		}
		if err := s.stock.Consume(ctx, tx, order.ProductID, order.Quantity); err != nil {
			return err
		}
		now := s.now()
		return repo.Update(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": now,
		})
	})
	if err != nil {
		return err
	}
	s.metrics.IncTransition("complete")
	return nil
}

func (s *service) RequestRefund(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error {
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}
	err := s.transition(ctx, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can request a refund")
		}
		if order.Status != enums.OrderStatusShipping && order.Status != enums.OrderStatusCompleted {
			return stateConflict(order.Status, "refund can only be requested after shipment")
		}
		now := s.now()
		prior := order.Status
		return repo.Update(ctx, order.ID, map[string]any{
			"status":              enums.OrderStatusRefundRequested,
			"refund_prior_status": prior,
			"refund_reason":       reason,
			"refund_requested_at": now,
		})
	})
	if err != nil {
		return err
	}
	s.metrics.IncTransition("request_refund")
	return nil
}

func (s *service) ProcessRefund(ctx context.Context, actor Actor, orderID uuid.UUID, input RefundDecisionInput) error {
	err := s.transition(ctx, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if err := s.requireProductOwner(ctx, tx, order, actor); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusRefundRequested {
			return stateConflict(order.Status, "no refund request to process")
		}

		if input.Approve {
			if err := s.stock.Release(ctx, tx, order.ProductID, order.Quantity); err != nil {
				return err
			}
			now := s.now()
			actorType := enums.CancelActorTypeFarmer
			if actor.Role == enums.MemberRoleAdmin {
				actorType = enums.CancelActorTypeAdmin
			}
			return repo.Update(ctx, order.ID, map[string]any{
				"status":            enums.OrderStatusCancelled,
				"cancelled_at":      now,
				"cancel_actor_id":   actor.UserID,
				"cancel_actor_type": actorType,
				"refund_note":       input.Note,
			})
		}

		// Rejection restores the state the order held before the request.
		prior := enums.OrderStatusCompleted
		if order.RefundPriorStatus != nil {
			prior = *order.RefundPriorStatus
		}
		return repo.Update(ctx, order.ID, map[string]any{
			"status":              prior,
			"refund_prior_status": nil,
			"refund_note":         input.Note,
		})
	})
	if err != nil {
		return err
	}
	s.metrics.IncTransition("process_refund")
	return nil
}

// Delete applies the buyer deletion decision: a hard delete for self
// cancelled orders, a soft hide for the rest.
func (s *service) Delete(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	return s.transition(ctx, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		switch DecideDeletion(order, actor.UserID, actor.Role) {
		case DeletionHard:
			if err := repo.HardDelete(ctx, order.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
			}
			return nil
		case DeletionSoft:
			now := s.now()
			return repo.Update(ctx, order.ID, map[string]any{
				"deleted":    true,
				"deleted_at": now,
			})
		default:
			return pkgerrors.New(pkgerrors.CodeForbidden, "caller cannot delete this order")
		}
	})
}

// transition loads the order under a row lock and applies fn inside one
// transaction.
func (s *service) transition(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, repo Repository, order *models.Order) error) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		return fn(tx, repo, order)
	})
}

func (s *service) requireProductOwner(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor) error {
	if actor.Role == enums.MemberRoleAdmin {
		return nil
	}
	product, err := s.loadProduct(ctx, tx, order.ProductID)
	if err != nil {
		return err
	}
	if product.FarmerID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order is not for the caller's product")
	}
	return nil
}

func (s *service) loadProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.WithTx(tx).FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
