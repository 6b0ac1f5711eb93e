// Package square charges card sources captured by the payment widget.
package square

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var environments = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client is a narrow Square wrapper: one operation, logged with sensitive
// fields redacted, errors mapped onto the dispatch failure codes.
type Client struct {
	sdk        *sqclient.Client
	env        string
	locationID string
	currency   string
	logg       *logger.Logger
}

func NewClient(ctx context.Context, cfg config.PaymentsConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	env := strings.ToLower(strings.TrimSpace(cfg.SquareEnv))
	if env == "" {
		env = sandboxEnv
	}
	baseURL, ok := environments[env]
	if !ok {
		return nil, fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	}
	token := strings.TrimSpace(cfg.SquareAccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}
	location := strings.TrimSpace(cfg.SquareLocationID)
	if location == "" {
		return nil, errors.New("square location id is required")
	}

	c := &Client{
		sdk:        sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token)),
		env:        env,
		locationID: location,
		currency:   cfg.Currency,
		logg:       logg,
	}
	logg.Info(logg.WithField(ctx, "square_env", env), "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}

// Charge creates a payment for req. A payment Square reports as FAILED or
// CANCELED is returned as a permanent channel error.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeMissingField, "square idempotency key is required")
	}
	if req.LocationID == "" {
		req.LocationID = c.locationID
	}
	if req.Currency == "" {
		req.Currency = c.currency
	}

	ctx = c.logg.WithFields(ctx, redacted(map[string]any{
		"operation":    "create_payment",
		"reference_id": req.ReferenceID,
		"amount_minor": req.AmountMinor,
		"source_id":    req.SourceID,
		"buyer_email":  req.BuyerEmail,
	}))
	started := time.Now()
	resp, err := c.sdk.Payments.Create(ctx, req.sdkRequest())
	ctx = c.logg.WithField(ctx, "duration_ms", time.Since(started).Milliseconds())
	if err != nil {
		mapped := mapError(err, "create payment")
		c.logg.Error(ctx, "square call failed", mapped)
		return Receipt{}, mapped
	}

	receipt := receiptFrom(resp.GetPayment())
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"payment_id": receipt.PaymentID,
		"status":     receipt.Status,
	}), "square call succeeded")

	switch receipt.Status {
	case "FAILED", "CANCELED":
		return receipt, pkgerrors.Newf(pkgerrors.CodePermanentChannel, "square payment %s", strings.ToLower(receipt.Status))
	}
	return receipt, nil
}

var sensitiveFragments = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone", "source"}

// redacted masks values whose key looks like payment or contact data.
func redacted(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = value
		lower := strings.ToLower(key)
		for _, fragment := range sensitiveFragments {
			if strings.Contains(lower, fragment) {
				out[key] = "[REDACTED]"
				break
			}
		}
	}
	return out
}
