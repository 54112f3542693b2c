package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/growersmarket/farmdirect-backend/api/responses"
	"github.com/growersmarket/farmdirect-backend/api/validators"
	"github.com/growersmarket/farmdirect-backend/internal/products"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
)

type createProductRequest struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description,omitempty"`
	PriceCents   int      `json:"price_cents" validate:"required,gt=0"`
	UnitWeightKg *string  `json:"unit_weight_kg,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	InitialStock int      `json:"initial_stock" validate:"gte=0"`
}

type updateProductRequest struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	PriceCents   *int     `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	UnitWeightKg *string  `json:"unit_weight_kg,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

type productResponse struct {
	ID           string   `json:"id"`
	FarmerID     string   `json:"farmer_id"`
	Name         string   `json:"name"`
	Description  *string  `json:"description,omitempty"`
	PriceCents   int      `json:"price_cents"`
	UnitWeightKg *string  `json:"unit_weight_kg,omitempty"`
	Tags         []string `json:"tags"`
	IsActive     bool     `json:"is_active"`
	AvailableQty *int     `json:"available_qty,omitempty"`
	ReservedQty  *int     `json:"reserved_qty,omitempty"`
}

func newProductResponse(p *models.Product) productResponse {
	if p == nil {
		return productResponse{}
	}
	resp := productResponse{
		ID:          p.ID.String(),
		FarmerID:    p.FarmerID.String(),
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Tags:        p.Tags,
		IsActive:    p.IsActive,
	}
	if p.UnitWeightKg != nil {
		weight := p.UnitWeightKg.String()
		resp.UnitWeightKg = &weight
	}
	if p.Inventory != nil {
		available := p.Inventory.AvailableQty
		reserved := p.Inventory.ReservedQty
		resp.AvailableQty = &available
		resp.ReservedQty = &reserved
	}
	return resp
}

func parseWeight(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	weight, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit weight").WithDetails(map[string]any{"field": "unit_weight_kg"})
	}
	if weight.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit weight cannot be negative")
	}
	return &weight, nil
}

// ProductCreate opens a new listing for the calling farmer.
func ProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		weight, err := parseWeight(body.UnitWeightKg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), products.Actor{UserID: userID, Role: role}, products.CreateInput{
			Name:         body.Name,
			Description:  body.Description,
			PriceCents:   body.PriceCents,
			UnitWeightKg: weight,
			Tags:         body.Tags,
			InitialStock: body.InitialStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

// ProductUpdate applies a partial update to one of the farmer's listings.
func ProductUpdate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		weight, err := parseWeight(body.UnitWeightKg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), products.Actor{UserID: userID, Role: role}, productID, products.UpdateInput{
			Name:         body.Name,
			Description:  body.Description,
			PriceCents:   body.PriceCents,
			UnitWeightKg: weight,
			Tags:         body.Tags,
			IsActive:     body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(product))
	}
}

func ProductDetail(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(product))
	}
}

// ProductListMine returns the calling farmer's listings.
func ProductListMine(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		userID, role, err := actorIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListMine(r.Context(), products.Actor{UserID: userID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(items))
		for i := range items {
			out = append(out, newProductResponse(&items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
