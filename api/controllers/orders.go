package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/growersmarket/farmdirect-backend/api/responses"
	"github.com/growersmarket/farmdirect-backend/api/validators"
	internalorders "github.com/growersmarket/farmdirect-backend/internal/orders"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
)

type shipRequest struct {
	DeliveryInfo    *string    `json:"delivery_info,omitempty"`
	DeliveryContact *string    `json:"delivery_contact,omitempty"`
	DeliveryPhone   *string    `json:"delivery_phone,omitempty"`
	DeliveryETA     *time.Time `json:"delivery_eta,omitempty"`
}

type batchShipRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1"`
	shipRequest
}

type cancelRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type refundDecisionRequest struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note,omitempty"`
}

func (b shipRequest) toInput() internalorders.ShipInput {
	return internalorders.ShipInput{
		DeliveryInfo:    b.DeliveryInfo,
		DeliveryContact: b.DeliveryContact,
		DeliveryPhone:   b.DeliveryPhone,
		DeliveryETA:     b.DeliveryETA,
	}
}

func orderActor(r *http.Request) (internalorders.Actor, error) {
	userID, role, err := actorIdentity(r)
	if err != nil {
		return internalorders.Actor{}, err
	}
	return internalorders.Actor{UserID: userID, Role: role}, nil
}

func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderListMine returns the calling buyer's orders.
func OrderListMine(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.ListMine(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderListForFarmer returns orders touching the calling farmer's products.
func OrderListForFarmer(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.ListForFarmer(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderMarkPaid flags an order as paid by the buyer.
func OrderMarkPaid(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, func(r *http.Request, actor internalorders.Actor, orderID uuid.UUID) error {
		return svc.MarkPaid(r.Context(), actor, orderID)
	})
}

// OrderShip moves a single order into SHIPPING.
func OrderShip(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body shipRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Ship(r.Context(), actor, orderID, body.toInput()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "shipping"})
	}
}

// OrderBatchShip ships up to the configured cap of orders atomically.
func OrderBatchShip(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body batchShipRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.BatchShip(r.Context(), actor, body.OrderIDs, body.toInput()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "shipping", "count": len(body.OrderIDs)})
	}
}

func OrderCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), actor, orderID, body.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

func OrderComplete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, func(r *http.Request, actor internalorders.Actor, orderID uuid.UUID) error {
		return svc.Complete(r.Context(), actor, orderID)
	})
}

// OrderRequestRefund opens a refund request on a shipped or completed order.
func OrderRequestRefund(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RequestRefund(r.Context(), actor, orderID, body.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "refund_requested"})
	}
}

// OrderProcessRefund records the product owner's verdict on a refund request.
func OrderProcessRefund(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refundDecisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ProcessRefund(r.Context(), actor, orderID, internalorders.RefundDecisionInput{
			Approve: body.Approve,
			Note:    body.Note,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}

// OrderDelete removes an order from the buyer's view, hard or soft.
func OrderDelete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, func(r *http.Request, actor internalorders.Actor, orderID uuid.UUID) error {
		return svc.Delete(r.Context(), actor, orderID)
	})
}

func orderTransition(svc internalorders.Service, logg *logger.Logger, apply func(*http.Request, internalorders.Actor, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := apply(r, actor, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
