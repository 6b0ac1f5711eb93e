package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/internal/content"
	"github.com/angelmondragon/gigflow-dispatch/internal/dispatch"
	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/validation"
)

// Service drives milestone checkout through the configured payment channel.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.PaymentOrder, error)
	Checkout(ctx context.Context, input CheckoutInput) (*content.PaymentResult, error)
	Callback(ctx context.Context, orderID string, cb WidgetCallback) error
	Mode() string
}

// ServiceParams groups the checkout dependencies.
type ServiceParams struct {
	Repo     Repository
	Channel  PaymentChannel
	Pipeline dispatch.Processor
	Lease    dispatch.LeaseGuard
	Currency string
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	channel  PaymentChannel
	pipeline dispatch.Processor
	lease    dispatch.LeaseGuard
	currency string
	validate *validator.Validate
	logg     *logger.Logger
	now      func() time.Time
}

// CreateOrderInput opens an escrow milestone for payment.
type CreateOrderInput struct {
	JobID       string `json:"jobId" validate:"required,notblank"`
	Milestone   string `json:"milestone" validate:"required,notblank"`
	AmountMinor int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"omitempty,currency"`
	PayerName   string `json:"payerName"`
	PayerEmail  string `json:"payerEmail" validate:"omitempty,email"`
}

// CheckoutInput confirms payment of an existing order.
type CheckoutInput struct {
	OrderID    string `json:"orderId" validate:"required,uuid"`
	PayerName  string `json:"payerName"`
	PayerEmail string `json:"payerEmail" validate:"omitempty,email"`
	Theme      string `json:"theme"`
}

// NewService wires the checkout dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment order repository required")
	}
	if params.Channel == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment channel required")
	}
	if params.Pipeline == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dispatch pipeline required")
	}
	if params.Lease == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lease guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}
	v := validation.Engine()
	return &service{
		repo:     params.Repo,
		channel:  params.Channel,
		pipeline: params.Pipeline,
		lease:    params.Lease,
		currency: currency,
		validate: v,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Mode() string {
	return s.channel.Mode()
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.PaymentOrder, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}
	order := &models.PaymentOrder{
		JobID:       strings.TrimSpace(input.JobID),
		Milestone:   strings.TrimSpace(input.Milestone),
		AmountMinor: input.AmountMinor,
		Currency:    currency,
		Status:      enums.PaymentStatusUnpaid,
		PayerName:   optional(input.PayerName),
		PayerEmail:  optional(input.PayerEmail),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment order")
	}
	return order, nil
}

// Checkout opens a confirmation, waits for its single outcome, records it
// through the dispatch pipeline and returns the normalized result. Dismissal
// returns a cancelled result without touching the side-effect status.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*content.PaymentResult, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	orderID := order.ID.String()
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": orderID, "mode": s.channel.Mode()})

	if order.SideEffectSent || order.Status.Terminal() {
		s.logg.Info(ctx, "order already paid; returning recorded result")
		result := paidResult(order)
		return &result, nil
	}

	holder := uuid.NewString()
	claimed, err := s.lease.Claim(ctx, enums.EventKindPaymentResolved.String(), orderID, holder)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim checkout lease")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already in progress for this order")
	}
	defer func() {
		if relErr := s.lease.Release(context.WithoutCancel(ctx), enums.EventKindPaymentResolved.String(), orderID, holder); relErr != nil {
			s.logg.Error(ctx, "release checkout lease", relErr)
		}
	}()

	prefill := Prefill{Name: input.PayerName, Email: input.PayerEmail}
	if prefill.Name == "" && order.PayerName != nil {
		prefill.Name = *order.PayerName
	}
	if prefill.Email == "" && order.PayerEmail != nil {
		prefill.Email = *order.PayerEmail
	}
	conf, err := s.channel.Confirm(ctx, ConfirmRequest{
		OrderID:     orderID,
		JobID:       order.JobID,
		Milestone:   order.Milestone,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		Prefill:     prefill,
		Theme:       input.Theme,
	})
	if err != nil {
		return nil, err
	}
	outcome, err := conf.Wait(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransientChannel, err, "payment confirmation interrupted")
	}

	evt := events.FromPaymentResult(uuid.NewString(), events.GatewayResponse{
		Result:      outcome.Result,
		PaymentID:   outcome.PaymentID,
		OrderID:     outcome.OrderID,
		Signature:   outcome.Signature,
		ErrorCode:   outcome.ErrorCode,
		ErrorReason: outcome.ErrorReason,
		IsMock:      outcome.IsMock,
	}, events.PaymentCorrelation{
		OrderID:     orderID,
		JobID:       order.JobID,
		Milestone:   order.Milestone,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
	}, s.now())

	attempt, err := s.pipeline.Process(ctx, evt)
	if err != nil {
		return nil, err
	}

	result := resultFromAttempt(order, attempt)
	s.resolveOrder(ctx, order, result)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"status":  result.Status.String(),
		"is_mock": result.IsMock,
	}), "checkout finished")
	return &result, nil
}

func (s *service) Callback(ctx context.Context, orderID string, cb WidgetCallback) error {
	if err := s.validateInput(cb); err != nil {
		return err
	}
	receiver, ok := s.channel.(CallbackReceiver)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s payments do not accept widget callbacks", s.channel.Mode()))
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	return receiver.Callback(ctx, orderID, cb)
}

func (s *service) loadOrder(ctx context.Context, rawID string) (*models.PaymentOrder, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment order")
	}
	return order, nil
}

// resolveOrder mirrors the outcome onto the order's own payment columns. The
// side-effect status is already recorded, so a failure here is only logged.
func (s *service) resolveOrder(ctx context.Context, order *models.PaymentOrder, result content.PaymentResult) {
	resolution := orderResolution{IsMock: result.IsMock, At: s.now()}
	switch result.Status {
	case enums.PaymentResultSuccess:
		resolution.Status = enums.PaymentStatusPaid
		resolution.PaymentID = result.PaymentID
	case enums.PaymentResultFailure:
		resolution.Status = enums.PaymentStatusFailed
		resolution.FailureReason = result.ErrorMessage
	default:
		return
	}
	if _, err := s.repo.MarkResolved(ctx, order.ID, resolution); err != nil {
		s.logg.Error(ctx, "update payment order status", err)
	}
}

func (s *service) validateInput(input any) error {
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment request").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment request")
	}
	return nil
}

func resultFromAttempt(order *models.PaymentOrder, attempt dispatch.Attempt) content.PaymentResult {
	if result, ok := attempt.RenderedContent.(content.PaymentResult); ok {
		return result
	}
	if attempt.Duplicate {
		return paidResult(order)
	}
	result := baseResult(order)
	result.Status = enums.PaymentResultFailure
	msg := "payment could not be processed"
	if attempt.ErrorDetail != nil {
		msg = *attempt.ErrorDetail
	}
	result.ErrorMessage = &msg
	return result
}

func paidResult(order *models.PaymentOrder) content.PaymentResult {
	result := baseResult(order)
	result.Status = enums.PaymentResultSuccess
	result.PaymentID = order.PaymentID
	if order.SideEffectReference != nil {
		result.Reference = order.SideEffectReference
	} else {
		result.Reference = order.PaymentID
	}
	return result
}

func baseResult(order *models.PaymentOrder) content.PaymentResult {
	milestone := order.Milestone
	return content.PaymentResult{
		OrderID:       order.ID.String(),
		CorrelationID: order.JobID,
		Amount:        content.MajorUnits(order.AmountMinor),
		Currency:      order.Currency,
		Milestone:     &milestone,
		IsMock:        order.IsMock,
	}
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
