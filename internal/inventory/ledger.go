// Package inventory keeps the per-product stock ledger. Every mutation runs
// inside the caller's transaction and takes a row lock first, so two
// concurrent reservations of the last unit resolve to exactly one winner.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationRequest asks for qty units of a product to be held.
type ReservationRequest struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	Qty       int
}

// ReservationResult reports the outcome for a single request. Requested and
// Available are filled regardless of outcome; Available is zero when the
// product has no ledger row.
type ReservationResult struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	Reserved  bool
	Requested int
	Available int
	Reason    string
}

// ShortageDetail describes one product that could not cover a request. It is
// attached to INSUFFICIENT_STOCK errors so callers can report every offender.
type ShortageDetail struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Available int       `json:"available"`
	Requested int       `json:"requested"`
}

// Reserve moves stock from available to reserved for each request, locking
// each inventory row in turn. Requests are processed in order; a request that
// cannot be covered is reported in its result rather than aborting the batch,
// so callers decide whether partial coverage is acceptable.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reserve requires a transaction")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}
	}

	results := make([]ReservationResult, 0, len(requests))
	for _, req := range requests {
		result := ReservationResult{LineID: req.LineID, ProductID: req.ProductID, Requested: req.Qty}

		var item models.InventoryItem
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ?", req.ProductID).
			First(&item).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				result.Reason = "no inventory record"
				results = append(results, result)
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory row")
		}

		result.Available = item.AvailableQty
		if item.AvailableQty < req.Qty {
			result.Reason = fmt.Sprintf("requested %d, available %d", req.Qty, item.AvailableQty)
			results = append(results, result)
			continue
		}

		err = tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ?", req.ProductID).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", req.Qty),
				"reserved_qty":  gorm.Expr("reserved_qty + ?", req.Qty),
			}).Error
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply reservation")
		}
		result.Reserved = true
		results = append(results, result)
	}
	return results, nil
}

// Release returns qty reserved units to available, used when an order is
// cancelled or a refund is approved. Reserved is floored at zero; released
// stock is always added back.
func Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "release requires a transaction")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
	}

	var item models.InventoryItem
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory row")
	}

	reservedDelta := qty
	if reservedDelta > item.ReservedQty {
		reservedDelta = item.ReservedQty
	}
	return tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty - ?", reservedDelta),
		}).Error
}

// Consume retires qty reserved units when an order completes. The stock has
// left the farm, so only the reserved counter drops.
func Consume(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "consume requires a transaction")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "consume quantity must be positive")
	}

	var item models.InventoryItem
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory row")
	}

	reservedDelta := qty
	if reservedDelta > item.ReservedQty {
		reservedDelta = item.ReservedQty
	}
	if reservedDelta == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ?", productID).
		Update("reserved_qty", gorm.Expr("reserved_qty - ?", reservedDelta)).Error
}

// Restock adds qty units of available stock, creating the ledger row if the
// product has never carried inventory.
func Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "restock requires a transaction")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}

	var item models.InventoryItem
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return tx.WithContext(ctx).Create(&models.InventoryItem{
				ProductID:    productID,
				AvailableQty: qty,
			}).Error
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory row")
	}

	return tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ?", productID).
		Update("available_qty", gorm.Expr("available_qty + ?", qty)).Error
}
