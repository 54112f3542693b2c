package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubProducts struct {
	products map[uuid.UUID]*models.Product
}

func (p *stubProducts) FindByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, ok := p.products[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

type stubRepo struct {
	lines map[uuid.UUID]*models.CartLine
}

func newStubRepo() *stubRepo {
	return &stubRepo{lines: map[uuid.UUID]*models.CartLine{}}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) Create(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	line.ID = uuid.New()
	r.lines[line.ID] = line
	return line, nil
}

func (r *stubRepo) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	if line, ok := r.lines[lineID]; ok {
		line.Quantity = quantity
	}
	return nil
}

func (r *stubRepo) Delete(ctx context.Context, lineID uuid.UUID) error {
	delete(r.lines, lineID)
	return nil
}

func (r *stubRepo) DeleteByIDs(ctx context.Context, lineIDs []uuid.UUID) error {
	for _, id := range lineIDs {
		delete(r.lines, id)
	}
	return nil
}

func (r *stubRepo) FindByID(ctx context.Context, lineID uuid.UUID) (*models.CartLine, error) {
	line, ok := r.lines[lineID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return line, nil
}

func (r *stubRepo) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartLine, error) {
	for _, line := range r.lines {
		if line.UserID == userID && line.ProductID == productID {
			return line, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	var out []models.CartLine
	for _, line := range r.lines {
		if line.UserID == userID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (r *stubRepo) ListByIDsForUser(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) ([]models.CartLine, error) {
	var out []models.CartLine
	for _, id := range lineIDs {
		if line, ok := r.lines[id]; ok && line.UserID == userID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func newService(t *testing.T, repo Repository, products productFinder) Service {
	t.Helper()
	svc, err := NewService(repo, products, stubTx{})
	require.NoError(t, err)
	return svc
}

func TestAddLineMergesSameProduct(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, PriceCents: 450, IsActive: true},
	}}
	repo := newStubRepo()
	svc := newService(t, repo, products)
	ctx := context.Background()

	first, err := svc.AddLine(ctx, userID, productID, 2)
	require.NoError(t, err)

	second, err := svc.AddLine(ctx, userID, productID, 3)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)
	assert.Len(t, repo.lines, 1)
}

func TestAddLineRejectsInactiveProduct(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, PriceCents: 450, IsActive: false},
	}}
	svc := newService(t, newStubRepo(), products)

	_, err := svc.AddLine(context.Background(), uuid.New(), productID, 1)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestAddLineRejectsUnknownProduct(t *testing.T) {
	t.Parallel()

	svc := newService(t, newStubRepo(), &stubProducts{products: map[uuid.UUID]*models.Product{}})

	_, err := svc.AddLine(context.Background(), uuid.New(), uuid.New(), 1)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateQuantityEnforcesOwnership(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, PriceCents: 450, IsActive: true},
	}}
	repo := newStubRepo()
	svc := newService(t, repo, products)
	ctx := context.Background()

	line, err := svc.AddLine(ctx, owner, productID, 2)
	require.NoError(t, err)

	err = svc.UpdateQuantity(ctx, uuid.New(), line.ID, 4)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	require.NoError(t, svc.UpdateQuantity(ctx, owner, line.ID, 4))
	assert.Equal(t, 4, repo.lines[line.ID].Quantity)
}

func TestRemoveLine(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, PriceCents: 450, IsActive: true},
	}}
	repo := newStubRepo()
	svc := newService(t, repo, products)
	ctx := context.Background()

	line, err := svc.AddLine(ctx, owner, productID, 2)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveLine(ctx, owner, line.ID))
	assert.Empty(t, repo.lines)

	err = svc.RemoveLine(ctx, owner, line.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestListPricesLines(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	productID := uuid.New()
	products := &stubProducts{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, PriceCents: 450, IsActive: true},
	}}
	svc := newService(t, newStubRepo(), products)
	ctx := context.Background()

	_, err := svc.AddLine(ctx, owner, productID, 3)
	require.NoError(t, err)

	lines, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1350, lines[0].TotalCents)
}
