package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/square"
)

// Charger captures a card source against Square.
type Charger interface {
	Charge(ctx context.Context, req square.ChargeRequest) (square.Receipt, error)
}

// pendingConfirmation is one open checkout attempt. chargeKey is the Square
// idempotency key for this attempt only: a callback retried after a transient
// error reuses it, while a later checkout of the same order gets a new one.
type pendingConfirmation struct {
	conf      *Confirmation
	req       ConfirmRequest
	chargeKey string
}

// settled reports whether the attempt already resolved and is only waiting
// to be dropped from the pending map.
func (p *pendingConfirmation) settled() bool {
	select {
	case <-p.conf.Done():
		return true
	default:
		return false
	}
}

// LiveChannel waits for the payment widget to report back and charges the
// card source through Square on success.
type LiveChannel struct {
	cfg       config.PaymentsConfig
	logg      *logger.Logger
	signer    signer
	newClient func(ctx context.Context) (Charger, error)

	clientOnce sync.Once
	client     Charger
	clientErr  error

	mu      sync.Mutex
	pending map[string]*pendingConfirmation
}

// NewLiveChannel builds the gateway-backed channel. The Square client is
// created on first use.
func NewLiveChannel(cfg config.PaymentsConfig, logg *logger.Logger) (*LiveChannel, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return newLiveChannel(cfg, logg, func(ctx context.Context) (Charger, error) {
		return square.NewClient(ctx, cfg, logg)
	}), nil
}

func newLiveChannel(cfg config.PaymentsConfig, logg *logger.Logger, factory func(ctx context.Context) (Charger, error)) *LiveChannel {
	return &LiveChannel{
		cfg:       cfg,
		logg:      logg,
		signer:    newSigner(cfg.SigningSecret),
		newClient: factory,
		pending:   map[string]*pendingConfirmation{},
	}
}

func (l *LiveChannel) Mode() string { return config.PaymentsModeLive }

func (l *LiveChannel) loadClient(ctx context.Context) (Charger, error) {
	l.clientOnce.Do(func() {
		l.client, l.clientErr = l.newClient(ctx)
	})
	return l.client, l.clientErr
}

// Confirm registers a pending confirmation for the order. It resolves when a
// widget callback arrives; there is no timeout besides ctx.
func (l *LiveChannel) Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	if _, err := l.loadClient(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable")
	}

	l.mu.Lock()
	if existing, exists := l.pending[req.OrderID]; exists && !existing.settled() {
		l.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment confirmation already open for order")
	}
	conf := newConfirmation(req.OrderID)
	l.pending[req.OrderID] = &pendingConfirmation{conf: conf, req: req, chargeKey: uuid.NewString()}
	l.mu.Unlock()

	go func() {
		select {
		case <-conf.Done():
		case <-ctx.Done():
		}
		l.forget(req.OrderID, conf)
	}()

	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"order_id": req.OrderID,
		"amount":   req.AmountMinor,
		"currency": req.Currency,
	}), "payment confirmation opened")
	return conf, nil
}

// Callback routes one widget callback to the pending confirmation.
func (l *LiveChannel) Callback(ctx context.Context, orderID string, cb WidgetCallback) error {
	l.mu.Lock()
	pending, ok := l.pending[orderID]
	l.mu.Unlock()
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no open payment confirmation for order")
	}

	var outcome Outcome
	switch strings.ToLower(strings.TrimSpace(cb.Event)) {
	case CallbackSuccess:
		charged, err := l.charge(ctx, pending, cb)
		if err != nil {
			if pkgerrors.IsRetryable(err) {
				return err
			}
			outcome = Outcome{
				Result:      enums.GatewayResultFailed,
				ErrorCode:   string(pkgerrors.CodeOf(err)),
				ErrorReason: failureReason(err),
			}
			break
		}
		outcome = charged
	case CallbackFailure:
		reason := strings.TrimSpace(cb.ErrorDescription)
		if reason == "" {
			reason = "payment failed"
		}
		outcome = Outcome{
			Result:      enums.GatewayResultFailed,
			ErrorCode:   strings.TrimSpace(cb.ErrorCode),
			ErrorReason: reason,
		}
	case CallbackDismiss:
		outcome = Outcome{Result: enums.GatewayResultDismissed}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown callback event %q", cb.Event))
	}

	if err := pending.conf.resolve(outcome); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment already resolved")
	}
	return nil
}

func (l *LiveChannel) charge(ctx context.Context, pending *pendingConfirmation, cb WidgetCallback) (Outcome, error) {
	req := pending.req
	client, err := l.loadClient(ctx)
	if err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable")
	}
	buyer := cb.BuyerEmail
	if buyer == "" {
		buyer = req.Prefill.Email
	}
	receipt, err := client.Charge(ctx, square.ChargeRequest{
		IdempotencyKey: pending.chargeKey,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		SourceID:       cb.SourceID,
		ReferenceID:    req.OrderID,
		Note:           fmt.Sprintf("Job %s milestone %s", req.JobID, req.Milestone),
		BuyerEmail:     buyer,
	})
	if err != nil {
		return Outcome{}, err
	}
	paymentID := receipt.PaymentID
	if paymentID == "" {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeTransientChannel, "square returned no payment id")
	}
	return Outcome{
		Result:    enums.GatewayResultSucceeded,
		OrderID:   req.OrderID,
		PaymentID: paymentID,
		Signature: l.signer.sign(req.OrderID, paymentID),
	}, nil
}

func (l *LiveChannel) forget(orderID string, conf *Confirmation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.pending[orderID]; ok && current.conf == conf {
		delete(l.pending, orderID)
	}
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
