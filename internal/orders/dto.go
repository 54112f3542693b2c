package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
)

// Actor identifies the authenticated caller of an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// ShipInput carries the optional delivery details a farmer supplies at
// shipment time. Absent fields get defaults.
type ShipInput struct {
	DeliveryInfo    *string
	DeliveryContact *string
	DeliveryPhone   *string
	DeliveryETA     *time.Time
}

// RefundDecisionInput carries a farmer's or admin's verdict on a refund
// request.
type RefundDecisionInput struct {
	Approve bool
	Note    *string
}
