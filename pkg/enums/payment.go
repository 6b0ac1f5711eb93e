package enums

// PaymentStatus is the lifecycle of an escrow milestone order.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

var paymentStatuses = []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusFailed}

func (p PaymentStatus) String() string { return string(p) }
func (p PaymentStatus) IsValid() bool  { return oneOf(p, paymentStatuses) }

// Terminal reports whether no further checkout may change the order.
func (p PaymentStatus) Terminal() bool { return p == PaymentStatusPaid }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, paymentStatuses)
}

// PaymentResultStatus is the normalized outcome handed back to the checkout
// caller.
type PaymentResultStatus string

const (
	PaymentResultSuccess   PaymentResultStatus = "success"
	PaymentResultFailure   PaymentResultStatus = "failure"
	PaymentResultCancelled PaymentResultStatus = "cancelled"
)

var paymentResultStatuses = []PaymentResultStatus{PaymentResultSuccess, PaymentResultFailure, PaymentResultCancelled}

func (s PaymentResultStatus) String() string { return string(s) }
func (s PaymentResultStatus) IsValid() bool  { return oneOf(s, paymentResultStatuses) }

func ParsePaymentResultStatus(value string) (PaymentResultStatus, error) {
	return parse("payment result status", value, paymentResultStatuses)
}

// GatewayResult is the raw terminal state reported by the payment widget.
type GatewayResult string

const (
	GatewayResultSucceeded GatewayResult = "succeeded"
	GatewayResultFailed    GatewayResult = "failed"
	GatewayResultDismissed GatewayResult = "dismissed"
)

// ResultStatus maps the gateway's terminal state onto the normalized status.
// Anything unrecognised counts as a failure.
func (g GatewayResult) ResultStatus() PaymentResultStatus {
	switch g {
	case GatewayResultSucceeded:
		return PaymentResultSuccess
	case GatewayResultDismissed:
		return PaymentResultCancelled
	}
	return PaymentResultFailure
}
