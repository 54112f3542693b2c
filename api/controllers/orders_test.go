package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/growersmarket/farmdirect-backend/api/middleware"
	internalorders "github.com/growersmarket/farmdirect-backend/internal/orders"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
)

type stubOrderService struct {
	cancelled    []uuid.UUID
	cancelReason *string
	shipped      []uuid.UUID
	batched      [][]uuid.UUID
}

func (s *stubOrderService) Get(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, UserID: actor.UserID}, nil
}

func (s *stubOrderService) ListMine(ctx context.Context, actor internalorders.Actor) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderService) ListForFarmer(ctx context.Context, actor internalorders.Actor) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderService) MarkPaid(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) error {
	return nil
}

func (s *stubOrderService) Ship(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, input internalorders.ShipInput) error {
	s.shipped = append(s.shipped, orderID)
	return nil
}

func (s *stubOrderService) Cancel(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason *string) error {
	s.cancelled = append(s.cancelled, orderID)
	s.cancelReason = reason
	return nil
}

func (s *stubOrderService) Complete(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) error {
	return nil
}

func (s *stubOrderService) RequestRefund(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) error {
	return nil
}

func (s *stubOrderService) ProcessRefund(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, input internalorders.RefundDecisionInput) error {
	return nil
}

func (s *stubOrderService) Delete(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) error {
	return nil
}

func (s *stubOrderService) BatchShip(ctx context.Context, actor internalorders.Actor, orderIDs []uuid.UUID, input internalorders.ShipInput) error {
	s.batched = append(s.batched, orderIDs)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func authedContext(userID uuid.UUID, role string) context.Context {
	ctx := middleware.WithUserID(context.Background(), userID.String())
	return middleware.WithRole(ctx, role)
}

func withOrderParam(ctx context.Context, orderID string) context.Context {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", orderID)
	return context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
}

func TestOrderCancel(t *testing.T) {
	logg := testLogger()
	buyerID := uuid.New()
	orderID := uuid.New()

	t.Run("missing identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(`{}`))
		req = req.WithContext(withOrderParam(context.Background(), orderID.String()))
		rec := httptest.NewRecorder()
		OrderCancel(&stubOrderService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("invalid order id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/nope/cancel", strings.NewReader(`{}`))
		req = req.WithContext(withOrderParam(authedContext(buyerID, "buyer"), "not-a-uuid"))
		rec := httptest.NewRecorder()
		OrderCancel(&stubOrderService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("passes reason through", func(t *testing.T) {
		stub := &stubOrderService{}
		body := strings.NewReader(`{"reason":"changed my mind"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", body)
		req = req.WithContext(withOrderParam(authedContext(buyerID, "buyer"), orderID.String()))
		rec := httptest.NewRecorder()
		OrderCancel(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(stub.cancelled) != 1 || stub.cancelled[0] != orderID {
			t.Fatalf("expected cancel for %s, got %v", orderID, stub.cancelled)
		}
		if stub.cancelReason == nil || *stub.cancelReason != "changed my mind" {
			t.Fatalf("reason not forwarded: %v", stub.cancelReason)
		}
	})
}

func TestOrderBatchShipRequiresIDs(t *testing.T) {
	logg := testLogger()
	farmerID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/batch-ship", strings.NewReader(`{"order_ids":[]}`))
	req = req.WithContext(authedContext(farmerID, "farmer"))
	rec := httptest.NewRecorder()
	OrderBatchShip(&stubOrderService{}, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestOrderBatchShipForwardsIDs(t *testing.T) {
	logg := testLogger()
	farmerID := uuid.New()
	first := uuid.New()
	second := uuid.New()

	stub := &stubOrderService{}
	body := strings.NewReader(`{"order_ids":["` + first.String() + `","` + second.String() + `"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/batch-ship", body)
	req = req.WithContext(authedContext(farmerID, "farmer"))
	rec := httptest.NewRecorder()
	OrderBatchShip(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(stub.batched) != 1 || len(stub.batched[0]) != 2 {
		t.Fatalf("expected one batch of two ids, got %v", stub.batched)
	}
}
