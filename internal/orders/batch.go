package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// BatchShip transitions a set of orders to shipping in one transaction. Every
// order is validated first and every violation is reported; a single bad id
// fails the whole batch with nothing written.
func (s *service) BatchShip(ctx context.Context, actor Actor, orderIDs []uuid.UUID, input ShipInput) error {
	if len(orderIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one order id required")
	}
	if len(orderIDs) > s.batchCap {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("batch is limited to %d orders", s.batchCap))
	}
	seen := make(map[uuid.UUID]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate order id in batch").
				WithDetails(map[string]any{"order_id": id})
		}
		seen[id] = struct{}{}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByIDsForUpdate(ctx, orderIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch orders")
		}
		byID := make(map[uuid.UUID]*models.Order, len(loaded))
		productIDs := make([]uuid.UUID, 0, len(loaded))
		for i := range loaded {
			byID[loaded[i].ID] = &loaded[i]
			productIDs = append(productIDs, loaded[i].ProductID)
		}

		owners := map[uuid.UUID]uuid.UUID{}
		if len(productIDs) > 0 {
			prods, err := s.products.WithTx(tx).FindByIDs(ctx, productIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch products")
			}
			for _, p := range prods {
				owners[p.ID] = p.FarmerID
			}
		}

		var violations error
		for _, id := range orderIDs {
			order, ok := byID[id]
			if !ok {
				violations = multierr.Append(violations,
					pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
						WithDetails(map[string]any{"order_id": id}))
				continue
			}
			if actor.Role != enums.MemberRoleAdmin && owners[order.ProductID] != actor.UserID {
				violations = multierr.Append(violations,
					pkgerrors.New(pkgerrors.CodeForbidden, "order is not for the caller's product").
						WithDetails(map[string]any{"order_id": id}))
				continue
			}
			if order.Status != enums.OrderStatusReadyToShip {
				violations = multierr.Append(violations,
					pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting shipment").
						WithDetails(map[string]any{"order_id": id, "current_status": order.Status}))
			}
		}
		if violations != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, violations, "batch rejected")
		}

		now := s.now()
		return repo.UpdateAll(ctx, orderIDs, shipUpdates(input, now))
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveBatchShipSize(len(orderIDs))
	s.metrics.IncTransition("batch_ship")
	return nil
}
