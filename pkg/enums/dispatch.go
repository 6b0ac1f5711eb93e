package enums

// EventKind discriminates the domain events that trigger a side effect.
type EventKind string

const (
	EventKindRecordCreated   EventKind = "record_created"
	EventKindPaymentResolved EventKind = "payment_resolved"
)

var eventKinds = []EventKind{EventKindRecordCreated, EventKindPaymentResolved}

func (k EventKind) String() string { return string(k) }
func (k EventKind) IsValid() bool  { return oneOf(k, eventKinds) }

func ParseEventKind(value string) (EventKind, error) {
	return parse("event kind", value, eventKinds)
}

// AttemptOutcome is the state of a single side-effect attempt.
type AttemptOutcome string

const (
	AttemptOutcomePending AttemptOutcome = "pending"
	AttemptOutcomeSent    AttemptOutcome = "sent"
	AttemptOutcomeFailed  AttemptOutcome = "failed"
)

var attemptOutcomes = []AttemptOutcome{AttemptOutcomePending, AttemptOutcomeSent, AttemptOutcomeFailed}

func (o AttemptOutcome) String() string { return string(o) }
func (o AttemptOutcome) IsValid() bool  { return oneOf(o, attemptOutcomes) }

// FailureClass tells callers whether a failed attempt may be retried. It is
// empty for attempts that did not fail.
type FailureClass string

const (
	FailureClassNone      FailureClass = ""
	FailureClassTransient FailureClass = "transient"
	FailureClassPermanent FailureClass = "permanent"
)

func (c FailureClass) String() string { return string(c) }
