package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigflow-dispatch/internal/content"
	"github.com/angelmondragon/gigflow-dispatch/internal/payments"
	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

type stubPaymentService struct {
	order  *models.PaymentOrder
	result *content.PaymentResult
	err    error

	gotCheckout payments.CheckoutInput
	gotOrderID  string
	gotCallback payments.WidgetCallback
}

func (s *stubPaymentService) CreateOrder(ctx context.Context, input payments.CreateOrderInput) (*models.PaymentOrder, error) {
	return s.order, s.err
}

func (s *stubPaymentService) Checkout(ctx context.Context, input payments.CheckoutInput) (*content.PaymentResult, error) {
	s.gotCheckout = input
	return s.result, s.err
}

func (s *stubPaymentService) Callback(ctx context.Context, orderID string, cb payments.WidgetCallback) error {
	s.gotOrderID = orderID
	s.gotCallback = cb
	return s.err
}

func (s *stubPaymentService) Mode() string {
	return config.PaymentsModeSimulated
}

func TestCreatePaymentOrder(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{order: &models.PaymentOrder{
		ID:          uuid.New(),
		JobID:       "job-1",
		Milestone:   "M1",
		AmountMinor: 50000,
		Currency:    "USD",
		Status:      enums.PaymentStatusUnpaid,
		CreatedAt:   time.Now().UTC(),
	}}

	rec := httptest.NewRecorder()
	CreatePaymentOrder(svc, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/payments/orders",
		`{"jobId":"job-1","milestone":"M1","amount":50000}`, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, 500.0, data["amount"])
	assert.Equal(t, "unpaid", data["status"])
	assert.Equal(t, config.PaymentsModeSimulated, data["mode"])
}

func TestCreatePaymentOrderRejectsZeroAmount(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	CreatePaymentOrder(&stubPaymentService{}, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/",
		`{"jobId":"job-1","milestone":"M1","amount":0}`, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutReturnsNormalizedResult(t *testing.T) {
	t.Parallel()

	orderID := uuid.NewString()
	paymentID := "pay_mock_1"
	svc := &stubPaymentService{result: &content.PaymentResult{
		Status:    enums.PaymentResultSuccess,
		OrderID:   orderID,
		PaymentID: &paymentID,
		Reference: &paymentID,
		Amount:    decimal.New(500, 0),
		Currency:  "USD",
		IsMock:    true,
	}}

	rec := httptest.NewRecorder()
	Checkout(svc, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/api/v1/payments/checkout",
		`{"orderId":"`+orderID+`","payerEmail":"client@example.com"}`, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, svc.gotCheckout.OrderID)
	data := decodeData(t, rec)
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, paymentID, data["payment_id"])
	assert.Equal(t, 500.0, data["amount"])
	assert.Equal(t, true, data["isMock"])
}

func TestCheckoutDeclineIsStillAResult(t *testing.T) {
	t.Parallel()

	msg := "card declined"
	svc := &stubPaymentService{result: &content.PaymentResult{
		Status:       enums.PaymentResultFailure,
		OrderID:      uuid.NewString(),
		Amount:       decimal.New(10, 0),
		Currency:     "USD",
		ErrorMessage: &msg,
	}}

	rec := httptest.NewRecorder()
	Checkout(svc, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/",
		`{"orderId":"`+uuid.NewString()+`"}`, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "failure", data["status"])
	assert.Equal(t, msg, data["errorMessage"])
	assert.Nil(t, data["payment_id"])
}

func TestCheckoutConflict(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{err: pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress for order")}
	rec := httptest.NewRecorder()
	Checkout(svc, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/",
		`{"orderId":"`+uuid.NewString()+`"}`, nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "checkout already in progress for order", decodeError(t, rec).Message)
}

func TestPaymentCallback(t *testing.T) {
	t.Parallel()

	orderID := uuid.NewString()
	svc := &stubPaymentService{}
	rec := httptest.NewRecorder()
	PaymentCallback(svc, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/",
		`{"event":"success","sourceId":"cnon:card-nonce-ok"}`, map[string]string{"orderId": orderID}))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, orderID, svc.gotOrderID)
	assert.Equal(t, "cnon:card-nonce-ok", svc.gotCallback.SourceID)
}

func TestPaymentCallbackValidation(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{}
	rec := httptest.NewRecorder()
	PaymentCallback(svc, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/",
		`{"event":"success"}`, map[string]string{"orderId": uuid.NewString()}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.gotOrderID)

	rec = httptest.NewRecorder()
	PaymentCallback(svc, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/",
		`{"event":"refund"}`, map[string]string{"orderId": uuid.NewString()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentCallbackUnknownOrder(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{err: pkgerrors.New(pkgerrors.CodeNotFound, "no pending confirmation for order")}
	rec := httptest.NewRecorder()
	PaymentCallback(svc, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodPost, "/",
		`{"event":"dismiss"}`, map[string]string{"orderId": uuid.NewString()}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
