package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productFinder interface {
	FindByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// Line is a cart line joined with its current product snapshot.
type Line struct {
	ID         uuid.UUID       `json:"id"`
	Product    *models.Product `json:"product"`
	Quantity   int             `json:"quantity"`
	TotalCents int             `json:"total_cents"`
}

// Service manages a buyer's cart.
type Service interface {
	AddLine(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error
	RemoveLine(ctx context.Context, userID, lineID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]Line, error)
}

type service struct {
	repo     Repository
	products productFinder
	tx       txRunner
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, products productFinder, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: products, tx: tx}, nil
}

// AddLine puts quantity units of a product in the cart. Adding a product that
// is already carted merges into the existing line.
func (s *service) AddLine(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartLine, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	var line *models.CartLine
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByUserAndProduct(ctx, userID, productID)
		if err == nil {
			merged := existing.Quantity + quantity
			if err := repo.UpdateQuantity(ctx, existing.ID, merged); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart line")
			}
			existing.Quantity = merged
			line = existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up cart line")
		}
		line = &models.CartLine{
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
		}
		if _, err := repo.Create(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		line, err := repo.FindByID(ctx, lineID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if line.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart line does not belong to caller")
		}
		if err := repo.UpdateQuantity(ctx, lineID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		return nil
	})
}

func (s *service) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		line, err := repo.FindByID(ctx, lineID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if line.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart line does not belong to caller")
		}
		if err := repo.Delete(ctx, lineID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		return nil
	})
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]Line, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}

	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart product")
		}
		out = append(out, Line{
			ID:         line.ID,
			Product:    product,
			Quantity:   line.Quantity,
			TotalCents: product.PriceCents * line.Quantity,
		})
	}
	return out, nil
}
