package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/growersmarket/farmdirect-backend/api/responses"
	"github.com/growersmarket/farmdirect-backend/api/validators"
	"github.com/growersmarket/farmdirect-backend/internal/shippingfee"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
)

type feeRuleRequest struct {
	Name                       string     `json:"name" validate:"required"`
	DeliveryAreaID             *uuid.UUID `json:"delivery_area_id,omitempty"`
	BaseFeeCents               int        `json:"base_fee_cents" validate:"gte=0"`
	FreeShippingThresholdCents int        `json:"free_shipping_threshold_cents" validate:"gte=0"`
	ExtraFeePerKgCents         *string    `json:"extra_fee_per_kg_cents,omitempty"`
	Priority                   int        `json:"priority"`
	Enabled                    bool       `json:"enabled"`
}

type setRuleEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type feeRuleResponse struct {
	ID                         uuid.UUID  `json:"id"`
	Name                       string     `json:"name"`
	DeliveryAreaID             *uuid.UUID `json:"delivery_area_id,omitempty"`
	BaseFeeCents               int        `json:"base_fee_cents"`
	FreeShippingThresholdCents int        `json:"free_shipping_threshold_cents"`
	ExtraFeePerKgCents         *string    `json:"extra_fee_per_kg_cents,omitempty"`
	Priority                   int        `json:"priority"`
	Enabled                    bool       `json:"enabled"`
}

func newFeeRuleResponse(rule *models.ShippingFeeRule) feeRuleResponse {
	if rule == nil {
		return feeRuleResponse{}
	}
	resp := feeRuleResponse{
		ID:                         rule.ID,
		Name:                       rule.Name,
		DeliveryAreaID:             rule.DeliveryAreaID,
		BaseFeeCents:               rule.BaseFeeCents,
		FreeShippingThresholdCents: rule.FreeShippingThresholdCents,
		Priority:                   rule.Priority,
		Enabled:                    rule.Enabled,
	}
	if rule.ExtraFeePerKgCents != nil {
		perKg := rule.ExtraFeePerKgCents.String()
		resp.ExtraFeePerKgCents = &perKg
	}
	return resp
}

func (b feeRuleRequest) toInput() (shippingfee.RuleInput, error) {
	input := shippingfee.RuleInput{
		Name:                       b.Name,
		DeliveryAreaID:             b.DeliveryAreaID,
		BaseFeeCents:               b.BaseFeeCents,
		FreeShippingThresholdCents: b.FreeShippingThresholdCents,
		Priority:                   b.Priority,
		Enabled:                    b.Enabled,
	}
	if b.ExtraFeePerKgCents != nil {
		perKg, err := decimal.NewFromString(*b.ExtraFeePerKgCents)
		if err != nil {
			return shippingfee.RuleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid per-kg surcharge").
				WithDetails(map[string]any{"field": "extra_fee_per_kg_cents"})
		}
		if perKg.IsNegative() {
			return shippingfee.RuleInput{}, pkgerrors.New(pkgerrors.CodeValidation, "per-kg surcharge cannot be negative")
		}
		input.ExtraFeePerKgCents = &perKg
	}
	return input, nil
}

func feeActor(r *http.Request) (shippingfee.Actor, error) {
	userID, role, err := actorIdentity(r)
	if err != nil {
		return shippingfee.Actor{}, err
	}
	return shippingfee.Actor{UserID: userID, Role: role}, nil
}

func FeeRuleList(svc shippingfee.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping fee service unavailable"))
			return
		}

		actor, err := feeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rules, err := svc.ListRules(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]feeRuleResponse, 0, len(rules))
		for i := range rules {
			out = append(out, newFeeRuleResponse(&rules[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func FeeRuleCreate(svc shippingfee.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping fee service unavailable"))
			return
		}

		actor, err := feeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body feeRuleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.CreateRule(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newFeeRuleResponse(rule))
	}
}

func FeeRuleUpdate(svc shippingfee.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping fee service unavailable"))
			return
		}

		actor, err := feeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ruleID, err := validators.ParseUUIDParam(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body feeRuleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.UpdateRule(r.Context(), actor, ruleID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newFeeRuleResponse(rule))
	}
}

// FeeRuleSetEnabled toggles a rule without replacing its pricing fields.
func FeeRuleSetEnabled(svc shippingfee.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping fee service unavailable"))
			return
		}

		actor, err := feeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ruleID, err := validators.ParseUUIDParam(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setRuleEnabledRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetRuleEnabled(r.Context(), actor, ruleID, body.Enabled); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

func FeeRuleDelete(svc shippingfee.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping fee service unavailable"))
			return
		}

		actor, err := feeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ruleID, err := validators.ParseUUIDParam(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteRule(r.Context(), actor, ruleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// FeeQuote prices a hypothetical shipment for the caller.
func FeeQuote(svc shippingfee.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping fee service unavailable"))
			return
		}

		var body struct {
			DeliveryAreaID   *uuid.UUID `json:"delivery_area_id,omitempty"`
			OrderAmountCents int        `json:"order_amount_cents" validate:"gte=0"`
			WeightKg         *string    `json:"weight_kg,omitempty"`
		}
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var weight *decimal.Decimal
		if body.WeightKg != nil {
			parsed, err := decimal.NewFromString(*body.WeightKg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid weight"))
				return
			}
			weight = &parsed
		}

		quote, err := svc.ComputeFee(r.Context(), body.DeliveryAreaID, body.OrderAmountCents, weight)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"fee_cents": quote.FeeCents,
			"rule_id":   quote.RuleID,
		})
	}
}
