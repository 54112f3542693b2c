package orders

import (
	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
)

// DeletionMode is the outcome of the order deletion decision.
type DeletionMode string

const (
	// DeletionHard removes the row entirely.
	DeletionHard DeletionMode = "hard"
	// DeletionSoft hides the order from the buyer but keeps the record.
	DeletionSoft DeletionMode = "soft"
	// DeletionDenied rejects the request.
	DeletionDenied DeletionMode = "denied"
)

// DecideDeletion is the pure decision for a buyer's delete request. A hard
// delete is allowed only for an order the buyer cancelled themselves; any
// other order the buyer may only hide. Non-buyers get nothing.
func DecideDeletion(order *models.Order, actorID uuid.UUID, role enums.MemberRole) DeletionMode {
	if order == nil || actorID == uuid.Nil {
		return DeletionDenied
	}
	if order.UserID != actorID {
		return DeletionDenied
	}
	if order.Status == enums.OrderStatusCancelled &&
		order.CancelActorType != nil && *order.CancelActorType == enums.CancelActorTypeUser {
		return DeletionHard
	}
	return DeletionSoft
}
