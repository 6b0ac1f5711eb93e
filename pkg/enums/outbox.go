package enums

// OutboxAggregateType is the outbox_events.aggregate_type column.
type OutboxAggregateType string

const (
	AggregateApplication  OutboxAggregateType = "application"
	AggregatePaymentOrder OutboxAggregateType = "payment_order"
)

var aggregateTypes = []OutboxAggregateType{AggregateApplication, AggregatePaymentOrder}

func (a OutboxAggregateType) IsValid() bool { return oneOf(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, aggregateTypes)
}

// OutboxEventType is the outbox_events.event_type column and the event_type
// attribute on published messages.
type OutboxEventType string

const (
	EventApplicationCreated OutboxEventType = "application_created"
)

var eventTypes = []OutboxEventType{EventApplicationCreated}

func (e OutboxEventType) IsValid() bool { return oneOf(e, eventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, eventTypes)
}

// Kind maps an outbox event type onto the dispatch event kind it triggers.
// Event types without a side effect report false.
func (e OutboxEventType) Kind() (EventKind, bool) {
	if e == EventApplicationCreated {
		return EventKindRecordCreated, true
	}
	return "", false
}

// OutboxDLQErrorReason records why the relay gave up on a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) String() string { return string(r) }
func (r OutboxDLQErrorReason) IsValid() bool  { return oneOf(r, dlqReasons) }
