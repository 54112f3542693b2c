package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/growersmarket/farmdirect-backend/api/responses"
	"github.com/growersmarket/farmdirect-backend/api/validators"
	checkoutsvc "github.com/growersmarket/farmdirect-backend/internal/checkout"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
)

type shippingRequest struct {
	ShippingAddress   string     `json:"shipping_address" validate:"required"`
	ContactPhone      string     `json:"contact_phone" validate:"required"`
	ReceiverName      string     `json:"receiver_name" validate:"required"`
	DeliveryAreaID    *uuid.UUID `json:"delivery_area_id,omitempty"`
	ShippingFeeRuleID *uuid.UUID `json:"shipping_fee_rule_id,omitempty"`
}

type cartCheckoutRequest struct {
	shippingRequest
	CartLineIDs []uuid.UUID `json:"cart_line_ids,omitempty"`
}

type directCheckoutRequest struct {
	shippingRequest
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type orderGroupResponse struct {
	ID                uuid.UUID       `json:"id"`
	GroupNumber       string          `json:"group_number"`
	OrderCount        int             `json:"order_count"`
	TotalProductCents int             `json:"total_product_cents"`
	ShippingFeeCents  int             `json:"shipping_fee_cents"`
	TotalCents        int             `json:"total_cents"`
	ShippingAddress   string          `json:"shipping_address"`
	ContactPhone      string          `json:"contact_phone"`
	ReceiverName      string          `json:"receiver_name"`
	DeliveryAreaID    *uuid.UUID      `json:"delivery_area_id,omitempty"`
	ShippingFeeRuleID *uuid.UUID      `json:"shipping_fee_rule_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	Orders            []orderResponse `json:"orders"`
}

type orderResponse struct {
	ID               uuid.UUID  `json:"id"`
	ProductID        uuid.UUID  `json:"product_id"`
	ProductName      string     `json:"product_name,omitempty"`
	Quantity         int        `json:"quantity"`
	UnitPriceCents   int        `json:"unit_price_cents"`
	TotalCents       int        `json:"total_cents"`
	Status           string     `json:"status"`
	PaymentStatus    string     `json:"payment_status"`
	RefundReason     *string    `json:"refund_reason,omitempty"`
	RefundNote       *string    `json:"refund_note,omitempty"`
	CancelReason     *string    `json:"cancel_reason,omitempty"`
	DeliveryInfo     *string    `json:"delivery_info,omitempty"`
	DeliveryContact  *string    `json:"delivery_contact,omitempty"`
	DeliveryPhone    *string    `json:"delivery_phone,omitempty"`
	DeliveryETA      *time.Time `json:"delivery_eta,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	ShippedAt        *time.Time `json:"shipped_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	resp := orderResponse{
		ID:              order.ID,
		ProductID:       order.ProductID,
		Quantity:        order.Quantity,
		UnitPriceCents:  order.UnitPriceCents,
		TotalCents:      order.TotalCents,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		RefundReason:    order.RefundReason,
		RefundNote:      order.RefundNote,
		CancelReason:    order.CancelReason,
		DeliveryInfo:    order.DeliveryInfo,
		DeliveryContact: order.DeliveryContact,
		DeliveryPhone:   order.DeliveryPhone,
		DeliveryETA:     order.DeliveryETA,
		CreatedAt:       order.CreatedAt,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		CompletedAt:     order.CompletedAt,
		CancelledAt:     order.CancelledAt,
	}
	if order.Product != nil {
		resp.ProductName = order.Product.Name
	}
	return resp
}

func newOrderGroupResponse(group *models.OrderGroup) orderGroupResponse {
	if group == nil {
		return orderGroupResponse{}
	}
	orders := make([]orderResponse, 0, len(group.Orders))
	for i := range group.Orders {
		orders = append(orders, newOrderResponse(&group.Orders[i]))
	}
	return orderGroupResponse{
		ID:                group.ID,
		GroupNumber:       group.GroupNumber,
		OrderCount:        group.OrderCount,
		TotalProductCents: group.TotalProductCents,
		ShippingFeeCents:  group.ShippingFeeCents,
		TotalCents:        group.TotalCents,
		ShippingAddress:   group.ShippingAddress,
		ContactPhone:      group.ContactPhone,
		ReceiverName:      group.ReceiverName,
		DeliveryAreaID:    group.DeliveryAreaID,
		ShippingFeeRuleID: group.ShippingFeeRuleID,
		CreatedAt:         group.CreatedAt,
		Orders:            orders,
	}
}

func (b shippingRequest) toInput() checkoutsvc.ShippingInput {
	return checkoutsvc.ShippingInput{
		ShippingAddress:   b.ShippingAddress,
		ContactPhone:      b.ContactPhone,
		ReceiverName:      b.ReceiverName,
		DeliveryAreaID:    b.DeliveryAreaID,
		ShippingFeeRuleID: b.ShippingFeeRuleID,
	}
}

// CheckoutCart converts the buyer's cart into an order group.
func CheckoutCart(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cartCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.CreateFromCart(r.Context(), checkoutsvc.Actor{UserID: userID, Role: role}, checkoutsvc.CartCheckoutInput{
			ShippingInput: body.toInput(),
			CartLineIDs:   body.CartLineIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderGroupResponse(group))
	}
}

// CheckoutDirect buys a single product without touching the cart.
func CheckoutDirect(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body directCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.CreateDirect(r.Context(), checkoutsvc.Actor{UserID: userID, Role: role}, checkoutsvc.DirectCheckoutInput{
			ShippingInput: body.toInput(),
			ProductID:     body.ProductID,
			Quantity:      body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderGroupResponse(group))
	}
}

func OrderGroupDetail(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := validators.ParseUUIDParam(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.GetGroup(r.Context(), checkoutsvc.Actor{UserID: userID, Role: role}, groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderGroupResponse(group))
	}
}

func OrderGroupList(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groups, err := svc.ListGroups(r.Context(), checkoutsvc.Actor{UserID: userID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderGroupResponse, 0, len(groups))
		for i := range groups {
			out = append(out, newOrderGroupResponse(&groups[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
