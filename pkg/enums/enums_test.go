package enums

import "testing"

func TestParseEventKind(t *testing.T) {
	kind, err := ParseEventKind("record_created")
	if err != nil || kind != EventKindRecordCreated {
		t.Fatalf("unexpected parse result %q %v", kind, err)
	}
	if _, err := ParseEventKind("record_deleted"); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
	if EventKind("nope").IsValid() {
		t.Fatal("unknown kind should not be valid")
	}
}

func TestGatewayResultStatusMapping(t *testing.T) {
	cases := map[GatewayResult]PaymentResultStatus{
		GatewayResultSucceeded: PaymentResultSuccess,
		GatewayResultFailed:    PaymentResultFailure,
		GatewayResultDismissed: PaymentResultCancelled,
		GatewayResult("weird"): PaymentResultFailure,
	}
	for raw, want := range cases {
		if got := raw.ResultStatus(); got != want {
			t.Fatalf("%s: expected %s got %s", raw, want, got)
		}
	}
}

func TestOutboxEventKind(t *testing.T) {
	kind, ok := EventApplicationCreated.Kind()
	if !ok || kind != EventKindRecordCreated {
		t.Fatalf("expected record_created, got %q %v", kind, ok)
	}
	if _, ok := OutboxEventType("other").Kind(); ok {
		t.Fatal("unexpected kind for unknown event type")
	}
}

func TestParseTrimsAndRejects(t *testing.T) {
	if s, err := ParsePaymentStatus(" paid "); err != nil || s != PaymentStatusPaid {
		t.Fatalf("expected paid, got %q %v", s, err)
	}
	if _, err := ParsePaymentStatus("refunded"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	if r, err := ParsePaymentResultStatus("cancelled"); err != nil || r != PaymentResultCancelled {
		t.Fatalf("expected cancelled, got %q %v", r, err)
	}
	if _, err := ParseOutboxEventType("payment_captured"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if a, err := ParseOutboxAggregateType("payment_order"); err != nil || a != AggregatePaymentOrder {
		t.Fatalf("expected payment_order, got %q %v", a, err)
	}
}

func TestValidity(t *testing.T) {
	if !OutboxDLQReasonMaxAttempts.IsValid() || OutboxDLQErrorReason("timeout").IsValid() {
		t.Fatal("dlq reason validity is wrong")
	}
	if !AttemptOutcomeSent.IsValid() || AttemptOutcome("queued").IsValid() {
		t.Fatal("attempt outcome validity is wrong")
	}
	if !PaymentStatusPaid.Terminal() || PaymentStatusFailed.Terminal() {
		t.Fatal("only paid orders are terminal")
	}
}
