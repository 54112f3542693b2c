package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope
}

func TestWriteErrorExposesTypedMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeStateConflict, "order is not shippable").
		WithDetails(map[string]any{"current_status": "cancelled"})

	WriteError(context.Background(), nil, rec, err)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	envelope := decodeError(t, rec)
	if envelope.Error.Code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected code %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "order is not shippable" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
	if envelope.Error.Details == nil {
		t.Fatal("expected details to pass through")
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("pq: connection reset"), "persist order")

	WriteError(context.Background(), nil, rec, err)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	envelope := decodeError(t, rec)
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("internal message leaked: %q", envelope.Error.Message)
	}
	if envelope.Error.Details != nil {
		t.Fatal("internal errors must not carry details")
	}
}

func TestWriteErrorWrapsUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(context.Background(), nil, rec, errors.New("boom"))

	envelope := decodeError(t, rec)
	if envelope.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("expected internal code, got %q", envelope.Error.Code)
	}
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"status": "created"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode success envelope: %v", err)
	}
	if envelope.Data == nil {
		t.Fatal("expected data payload")
	}
}
