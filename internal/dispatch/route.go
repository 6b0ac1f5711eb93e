package dispatch

import (
	"context"
	"fmt"

	"github.com/angelmondragon/gigflow-dispatch/internal/content"
	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
)

// Prepared is a validated, rendered event ready for its executor.
type Prepared struct {
	Target  string
	Content any
}

// Route binds one event kind to its content builder and executor.
type Route interface {
	Prepare(evt events.DomainEvent) (Prepared, error)
	Execute(ctx context.Context, prepared Prepared) Attempt
	// Leased reports whether the pipeline must hold the record lease around Execute.
	Leased() bool
}

// NotificationRoute emails the applicant of a created application.
type NotificationRoute struct {
	executor *MailExecutor
}

// NewNotificationRoute wires the RecordCreated route.
func NewNotificationRoute(executor *MailExecutor) (*NotificationRoute, error) {
	if executor == nil {
		return nil, fmt.Errorf("mail executor required")
	}
	return &NotificationRoute{executor: executor}, nil
}

func (r *NotificationRoute) Prepare(evt events.DomainEvent) (Prepared, error) {
	fields, err := events.ApplicationFieldsFrom(evt)
	if err != nil {
		return Prepared{Target: fields.FreelancerEmail}, err
	}
	msg, err := content.BuildNotification(fields, evt.OccurredAt)
	if err != nil {
		return Prepared{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render notification")
	}
	return Prepared{Target: fields.FreelancerEmail, Content: msg}, nil
}

func (r *NotificationRoute) Execute(ctx context.Context, prepared Prepared) Attempt {
	msg, ok := prepared.Content.(content.Message)
	if !ok {
		return Attempt{Target: prepared.Target}.fail(pkgerrors.New(pkgerrors.CodeInternal, "notification content missing"))
	}
	return r.executor.Execute(ctx, msg, prepared.Target)
}

func (r *NotificationRoute) Leased() bool { return true }

// PaymentRoute records the terminal outcome of a payment confirmation. The
// channel call itself happens in the checkout flow, which owns the lease, so
// Execute only classifies the normalized result.
type PaymentRoute struct{}

func (PaymentRoute) Prepare(evt events.DomainEvent) (Prepared, error) {
	fields, err := events.PaymentFieldsFrom(evt)
	if err != nil {
		return Prepared{Target: fields.OrderID}, err
	}
	return Prepared{Target: fields.OrderID, Content: content.NormalizePayment(fields)}, nil
}

func (PaymentRoute) Execute(_ context.Context, prepared Prepared) Attempt {
	attempt := Attempt{Target: prepared.Target, Outcome: enums.AttemptOutcomePending, RenderedContent: prepared.Content}
	result, ok := prepared.Content.(content.PaymentResult)
	if !ok {
		return attempt.fail(pkgerrors.New(pkgerrors.CodeInternal, "payment result missing"))
	}

	switch result.Status {
	case enums.PaymentResultSuccess:
		attempt.Outcome = enums.AttemptOutcomeSent
		attempt.ProviderReference = result.Reference
	case enums.PaymentResultCancelled:
		attempt.Cancelled = true
	default:
		reason := "payment failed"
		if result.ErrorMessage != nil {
			reason = *result.ErrorMessage
		}
		attempt = attempt.fail(pkgerrors.New(pkgerrors.CodePermanentChannel, reason))
	}
	return attempt
}

func (PaymentRoute) Leased() bool { return false }
