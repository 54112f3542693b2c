package inventory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	squash := uuid.New()
	honey := uuid.New()

	for _, item := range []models.InventoryItem{
		{ProductID: squash, AvailableQty: 10},
		{ProductID: honey, AvailableQty: 2},
	} {
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	// The third request sees squash stock already drawn down by the first.
	requests := []ReservationRequest{
		{LineID: uuid.New(), ProductID: squash, Qty: 4},
		{LineID: uuid.New(), ProductID: honey, Qty: 2},
		{LineID: uuid.New(), ProductID: squash, Qty: 7},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := Reserve(ctx, tx, requests)
		if terr != nil {
			return terr
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Reserved {
			t.Fatalf("expected squash reservation to succeed: %+v", results[0])
		}
		if !results[1].Reserved {
			t.Fatalf("expected exact-cover honey reservation to succeed: %+v", results[1])
		}
		short := results[2]
		if short.Reserved || short.Reason == "" {
			t.Fatalf("expected oversized squash reservation to fail with reason: %+v", short)
		}
		if short.Requested != 7 || short.Available != 6 {
			t.Fatalf("shortage should report requested 7 against available 6, got %+v", short)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var invSquash, invHoney models.InventoryItem
	if err := db.First(&invSquash, "product_id = ?", squash).Error; err != nil {
		t.Fatalf("load squash inventory: %v", err)
	}
	if err := db.First(&invHoney, "product_id = ?", honey).Error; err != nil {
		t.Fatalf("load honey inventory: %v", err)
	}
	if invSquash.AvailableQty != 6 || invSquash.ReservedQty != 4 {
		t.Fatalf("unexpected squash inventory state: %+v", invSquash)
	}
	if invHoney.AvailableQty != 0 || invHoney.ReservedQty != 2 {
		t.Fatalf("unexpected honey inventory state: %+v", invHoney)
	}
}

func TestReserveLastUnitSingleWinner(t *testing.T) {
	t.Parallel()

	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}

	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: product, AvailableQty: 1}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	results := make([]ReservationResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.Transaction(func(tx *gorm.DB) error {
				out, terr := Reserve(ctx, tx, []ReservationRequest{{LineID: uuid.New(), ProductID: product, Qty: 1}})
				if terr != nil {
					return terr
				}
				results[i] = out[0]
				return nil
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("reservation %d: %v", i, err)
		}
	}
	winners := 0
	for _, result := range results {
		if result.Reserved {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner for the last unit, got %d: %+v", winners, results)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 0 || item.ReservedQty != 1 {
		t.Fatalf("unexpected inventory state: %+v", item)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: product, AvailableQty: 5}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	_, err := Reserve(ctx, db, []ReservationRequest{{ProductID: product, Qty: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveMissingRecord(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := Reserve(ctx, tx, []ReservationRequest{{ProductID: uuid.New(), Qty: 1}})
		if terr != nil {
			return terr
		}
		if len(results) != 1 || results[0].Reserved || results[0].Reason == "" {
			t.Fatalf("expected failed result with reason, got %+v", results)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}
}

func TestReleaseRestoresAvailable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: product, AvailableQty: 2, ReservedQty: 3}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Release(ctx, tx, product, 2)
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 4 || item.ReservedQty != 1 {
		t.Fatalf("unexpected inventory state: %+v", item)
	}
}

func TestReleaseFloorsReservedAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: product, AvailableQty: 0, ReservedQty: 1}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Release(ctx, tx, product, 5)
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 5 || item.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", item)
	}
}

func TestConsumeDropsReservedOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: product, AvailableQty: 2, ReservedQty: 3}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Consume(ctx, tx, product, 3)
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 2 || item.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", item)
	}
}

func TestRestockCreatesMissingRow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return Restock(ctx, tx, product, 7)
	})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 7 || item.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", item)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}
