package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigflow-dispatch/internal/content"
	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/sendgrid"
)

const (
	defaultSendTimeout = 10 * time.Second

	localReferencePrefix = "local-"
)

// MailSender is the mail transport the executor dispatches through.
type MailSender interface {
	Send(ctx context.Context, msg sendgrid.Message) (*sendgrid.Receipt, error)
}

// MailExecutor performs exactly one transport call per Execute.
type MailExecutor struct {
	sender  MailSender
	timeout time.Duration
	logg    *logger.Logger
}

// NewMailExecutor builds the notification executor. The send timeout comes
// from cfg; zero falls back to ten seconds.
func NewMailExecutor(sender MailSender, cfg config.MailConfig, logg *logger.Logger) (*MailExecutor, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &MailExecutor{sender: sender, timeout: timeout, logg: logg}, nil
}

// Execute sends msg to target under the configured timeout and classifies the result.
func (e *MailExecutor) Execute(ctx context.Context, msg content.Message, target string) Attempt {
	attempt := Attempt{
		Target:          target,
		Outcome:         enums.AttemptOutcomePending,
		RenderedContent: msg,
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	receipt, err := e.sender.Send(sendCtx, sendgrid.Message{
		To:      target,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return attempt.fail(err)
	}

	attempt.Outcome = enums.AttemptOutcomeSent
	ref := ""
	if receipt != nil {
		ref = strings.TrimSpace(receipt.MessageID)
	}
	if ref == "" {
		// accepted without a message id; keep a local reference so a sent
		// record always carries one
		ref = localReferencePrefix + uuid.NewString()
		e.logg.Warn(e.logg.WithField(ctx, "provider_reference", ref), "mail accepted without a provider message id")
	}
	attempt.ProviderReference = &ref
	return attempt
}
