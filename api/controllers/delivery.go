package controllers

import (
	"net/http"

	"github.com/growersmarket/farmdirect-backend/api/responses"
	"github.com/growersmarket/farmdirect-backend/api/validators"
	"github.com/growersmarket/farmdirect-backend/internal/delivery"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
)

type deliveryAreaRequest struct {
	Province        string `json:"province" validate:"required"`
	City            string `json:"city" validate:"required"`
	District        string `json:"district" validate:"required"`
	SupportsSameDay bool   `json:"supports_same_day"`
	BaseFeeCents    int    `json:"base_fee_cents" validate:"gte=0"`
}

func (b deliveryAreaRequest) toInput() delivery.AreaInput {
	return delivery.AreaInput{
		Province:        b.Province,
		City:            b.City,
		District:        b.District,
		SupportsSameDay: b.SupportsSameDay,
		BaseFeeCents:    b.BaseFeeCents,
	}
}

func DeliveryAreaList(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		areas, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, areas)
	}
}

func DeliveryAreaDetail(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		areaID, err := validators.ParseUUIDParam(r, "areaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		area, err := svc.Get(r.Context(), areaID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, area)
	}
}

func DeliveryAreaCreate(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body deliveryAreaRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		area, err := svc.Create(r.Context(), delivery.Actor{UserID: userID, Role: role}, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, area)
	}
}

func DeliveryAreaUpdate(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		areaID, err := validators.ParseUUIDParam(r, "areaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body deliveryAreaRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		area, err := svc.Update(r.Context(), delivery.Actor{UserID: userID, Role: role}, areaID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, area)
	}
}
