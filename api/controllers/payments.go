package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/gigflow-dispatch/api/responses"
	"github.com/angelmondragon/gigflow-dispatch/api/validators"
	"github.com/angelmondragon/gigflow-dispatch/internal/content"
	"github.com/angelmondragon/gigflow-dispatch/internal/payments"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

// CreatePaymentOrder opens a milestone payment order.
func CreatePaymentOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload payments.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentOrderResponse(order, svc.Mode()))
	}
}

// Checkout blocks until the payment channel resolves and returns the
// normalized result. Declines and dismissals are results, not errors.
func Checkout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload payments.CheckoutInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentCallback accepts the widget's completion post for a pending order.
func PaymentCallback(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload payments.WidgetCallback
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID := chi.URLParam(r, "orderId")
		if err := svc.Callback(r.Context(), orderID, payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
			"orderId": orderID,
			"event":   payload.Event,
		})
	}
}

type paymentOrderResponse struct {
	ID        uuid.UUID           `json:"id"`
	JobID     string              `json:"jobId"`
	Milestone string              `json:"milestone"`
	Amount    json.Number         `json:"amount"`
	Currency  string              `json:"currency"`
	Status    enums.PaymentStatus `json:"status"`
	Mode      string              `json:"mode"`
	Receipt   statusResponse      `json:"receipt"`
	CreatedAt time.Time           `json:"createdAt"`
}

func newPaymentOrderResponse(order *models.PaymentOrder, mode string) paymentOrderResponse {
	return paymentOrderResponse{
		ID:        order.ID,
		JobID:     order.JobID,
		Milestone: order.Milestone,
		Amount:    json.Number(content.MajorUnits(order.AmountMinor).StringFixed(2)),
		Currency:  order.Currency,
		Status:    order.Status,
		Mode:      mode,
		Receipt:   newStatusResponse(order.SideEffectStatus),
		CreatedAt: order.CreatedAt,
	}
}
