package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

const defaultSimulatedDelay = 1500 * time.Millisecond

// SimulatedChannel confirms every payment after a fixed delay without any
// network call.
type SimulatedChannel struct {
	delay  time.Duration
	signer signer
}

// NewSimulatedChannel builds the test-mode channel.
func NewSimulatedChannel(cfg config.PaymentsConfig) *SimulatedChannel {
	delay := cfg.SimulatedDelay
	if delay < 0 {
		delay = defaultSimulatedDelay
	}
	return &SimulatedChannel{delay: delay, signer: newSigner(cfg.SigningSecret)}
}

func (s *SimulatedChannel) Mode() string { return config.PaymentsModeSimulated }

// Confirm resolves with a generated successful outcome once the delay elapses.
// A canceled ctx leaves the confirmation unresolved.
func (s *SimulatedChannel) Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	conf := newConfirmation(req.OrderID)
	go func() {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		paymentID := "pay_mock_" + uuid.NewString()
		_ = conf.resolve(Outcome{
			Result:    enums.GatewayResultSucceeded,
			OrderID:   req.OrderID,
			PaymentID: paymentID,
			Signature: s.signer.sign(req.OrderID, paymentID),
			IsMock:    true,
		})
	}()
	return conf, nil
}
