package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies the authenticated caller of a product operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// CreateInput carries the fields a farmer supplies for a new listing.
type CreateInput struct {
	Name         string
	Description  string
	PriceCents   int
	UnitWeightKg *decimal.Decimal
	Tags         []string
	InitialStock int
}

// UpdateInput carries the mutable listing fields. Nil means leave unchanged.
type UpdateInput struct {
	Name         *string
	Description  *string
	PriceCents   *int
	UnitWeightKg *decimal.Decimal
	Tags         []string
	IsActive     *bool
}

// Service exposes farmer-facing product management.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, actor Actor, productID uuid.UUID, input UpdateInput) (*models.Product, error)
	Get(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListMine(ctx context.Context, actor Actor) ([]models.Product, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a product service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Product, error) {
	if actor.Role != enums.MemberRoleFarmer && actor.Role != enums.MemberRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can list products")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock cannot be negative")
	}

	product := &models.Product{
		FarmerID:     actor.UserID,
		Name:         input.Name,
		Description:  &input.Description,
		PriceCents:   input.PriceCents,
		UnitWeightKg: input.UnitWeightKg,
		Tags:         pq.StringArray(input.Tags),
		IsActive:     true,
		Inventory: &models.InventoryItem{
			AvailableQty: input.InitialStock,
		},
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, actor Actor, productID uuid.UUID, input UpdateInput) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.FarmerID != actor.UserID && actor.Role != enums.MemberRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to caller")
		}

		updates := map[string]any{}
		if input.Name != nil {
			if *input.Name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
			}
			updates["name"] = *input.Name
		}
		if input.Description != nil {
			updates["description"] = *input.Description
		}
		if input.PriceCents != nil {
			if *input.PriceCents <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
			}
			updates["price_cents"] = *input.PriceCents
		}
		if input.UnitWeightKg != nil {
			updates["unit_weight_kg"] = *input.UnitWeightKg
		}
		if input.Tags != nil {
			updates["tags"] = pq.StringArray(input.Tags)
		}
		if input.IsActive != nil {
			updates["is_active"] = *input.IsActive
		}
		if len(updates) == 0 {
			updated = product
			return nil
		}
		if err := repo.Update(ctx, productID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		updated, err = repo.FindByID(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) ListMine(ctx context.Context, actor Actor) ([]models.Product, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	products, err := s.repo.ListByFarmer(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}
