package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies the authenticated caller of an area operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// AreaInput carries the fields for creating or replacing a delivery area.
type AreaInput struct {
	Province        string
	City            string
	District        string
	SupportsSameDay bool
	BaseFeeCents    int
}

// Service manages the delivery area catalog.
type Service interface {
	Create(ctx context.Context, actor Actor, input AreaInput) (*models.DeliveryArea, error)
	Update(ctx context.Context, actor Actor, areaID uuid.UUID, input AreaInput) (*models.DeliveryArea, error)
	Get(ctx context.Context, areaID uuid.UUID) (*models.DeliveryArea, error)
	List(ctx context.Context) ([]models.DeliveryArea, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a delivery area service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input AreaInput) (*models.DeliveryArea, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateAreaInput(input); err != nil {
		return nil, err
	}

	area := &models.DeliveryArea{
		Province:        input.Province,
		City:            input.City,
		District:        input.District,
		SupportsSameDay: input.SupportsSameDay,
		BaseFeeCents:    input.BaseFeeCents,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, area); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery area")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return area, nil
}

func (s *service) Update(ctx context.Context, actor Actor, areaID uuid.UUID, input AreaInput) (*models.DeliveryArea, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateAreaInput(input); err != nil {
		return nil, err
	}

	var updated *models.DeliveryArea
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, areaID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery area not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery area")
		}
		updates := map[string]any{
			"province":          input.Province,
			"city":              input.City,
			"district":          input.District,
			"supports_same_day": input.SupportsSameDay,
			"base_fee_cents":    input.BaseFeeCents,
		}
		if err := repo.Update(ctx, areaID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery area")
		}
		var err error
		updated, err = repo.FindByID(ctx, areaID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload delivery area")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, areaID uuid.UUID) (*models.DeliveryArea, error) {
	area, err := s.repo.FindByID(ctx, areaID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery area not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery area")
	}
	return area, nil
}

func (s *service) List(ctx context.Context) ([]models.DeliveryArea, error) {
	areas, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery areas")
	}
	return areas, nil
}

func requireAdmin(actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.MemberRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func validateAreaInput(input AreaInput) error {
	if input.Province == "" || input.City == "" || input.District == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "province, city and district are required")
	}
	if input.BaseFeeCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "base fee cannot be negative")
	}
	return nil
}
