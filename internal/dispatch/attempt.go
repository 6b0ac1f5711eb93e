package dispatch

import (
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
)

// Attempt describes one pass of an event through the pipeline. It is handed
// back for logging and to the checkout caller; RenderedContent is never stored.
type Attempt struct {
	EventID           string               `json:"eventId"`
	Kind              enums.EventKind      `json:"kind"`
	RecordID          string               `json:"recordId"`
	Target            string               `json:"target"`
	Outcome           enums.AttemptOutcome `json:"outcome"`
	ProviderReference *string              `json:"providerReference"`
	ErrorDetail       *string              `json:"errorDetail"`
	FailureClass      enums.FailureClass   `json:"failureClass,omitempty"`
	// Cancelled marks a user-abandoned payment. It is not a channel failure.
	Cancelled bool `json:"cancelled,omitempty"`
	// Duplicate is set when the guard or lease short-circuited the attempt.
	Duplicate       bool  `json:"duplicate,omitempty"`
	Recorded        bool  `json:"recorded"`
	RenderedContent any   `json:"-"`
	Err             error `json:"-"`
}

// Terminal reports whether the attempt carries an outcome the status writer persists.
func (a Attempt) Terminal() bool {
	switch a.Outcome {
	case enums.AttemptOutcomeSent:
		return true
	case enums.AttemptOutcomeFailed:
		return a.FailureClass == enums.FailureClassPermanent
	default:
		return false
	}
}

func (a Attempt) logFields() map[string]any {
	fields := map[string]any{
		"event_id":  a.EventID,
		"record_id": a.RecordID,
		"kind":      a.Kind.String(),
		"outcome":   a.Outcome.String(),
	}
	if a.FailureClass != enums.FailureClassNone {
		fields["failure_class"] = a.FailureClass.String()
	}
	if a.ProviderReference != nil {
		fields["provider_reference"] = *a.ProviderReference
	}
	if a.Cancelled {
		fields["cancelled"] = true
	}
	return fields
}

func (a Attempt) outcomeLabel() string {
	if a.Cancelled {
		return "cancelled"
	}
	return a.Outcome.String()
}

// fail marks the attempt failed and classifies err by its retryability.
func (a Attempt) fail(err error) Attempt {
	a.Outcome = enums.AttemptOutcomeFailed
	a.Err = err
	detail := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		detail = typed.Message()
	}
	a.ErrorDetail = &detail
	if pkgerrors.IsRetryable(err) {
		a.FailureClass = enums.FailureClassTransient
	} else {
		a.FailureClass = enums.FailureClassPermanent
	}
	return a
}
