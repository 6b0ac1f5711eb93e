package content

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

func strPtr(v string) *string { return &v }

func TestBuildNotificationFull(t *testing.T) {
	msg, err := BuildNotification(events.ApplicationFields{
		ApplicationID:   "app-1",
		FreelancerEmail: "a@b.com",
		FreelancerName:  strPtr("A"),
		JobName:         strPtr("Widget"),
		Salary:          strPtr("100"),
		Duration:        strPtr("1w"),
	}, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "Application received: Widget", msg.Subject)
	for _, body := range []string{msg.HTML, msg.Text} {
		assert.Contains(t, body, "Hello A,")
		assert.Contains(t, body, "Widget")
		assert.Contains(t, body, "100")
		assert.Contains(t, body, "1w")
		assert.Contains(t, body, "Mar 2, 2026 09:00 UTC")
	}
	assert.Contains(t, msg.Text, "Client: N/A")
	assert.Contains(t, msg.Text, "Job ID: N/A")
}

func TestBuildNotificationAllOptionalAbsent(t *testing.T) {
	msg, err := BuildNotification(events.ApplicationFields{
		ApplicationID:   "app-1",
		FreelancerEmail: "a@b.com",
		JobName:         strPtr("   "),
	}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, "Application received", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Text, "Hello there,"))
	assert.Contains(t, msg.HTML, "<p>Hello there,</p>")
	for _, label := range []string{"Job", "Job ID", "Client", "Salary", "Duration", "Applied at"} {
		assert.Contains(t, msg.Text, label+": N/A")
	}
	assert.NotContains(t, msg.Text, "<no value>")
	assert.NotContains(t, msg.HTML, "<no value>")
}

func TestBuildNotificationEscapesHTML(t *testing.T) {
	msg, err := BuildNotification(events.ApplicationFields{
		FreelancerEmail: "a@b.com",
		CoverLetter:     strPtr("<script>alert(1)</script>"),
	}, time.Time{})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "<script>alert(1)</script>")
}

func TestBuildNotificationDeterministic(t *testing.T) {
	fields := events.ApplicationFields{FreelancerEmail: "a@b.com", FreelancerName: strPtr("A")}
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := BuildNotification(fields, at)
	require.NoError(t, err)
	second, err := BuildNotification(fields, at)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, "500.00", MajorUnits(50000).StringFixed(2))
	assert.Equal(t, "0.05", MajorUnits(5).StringFixed(2))
	assert.True(t, MajorUnits(50000).Equal(MajorUnits(50000)))
}

func TestNormalizePayment(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		res := NormalizePayment(events.PaymentFields{
			OrderID:     "O1",
			JobID:       "J1",
			Result:      enums.GatewayResultSucceeded,
			Milestone:   strPtr("M1"),
			AmountMinor: 50000,
			PaymentID:   strPtr("pay_1"),
			IsMock:      true,
		})
		assert.Equal(t, enums.PaymentResultSuccess, res.Status)
		assert.Equal(t, "500.00", res.Amount.StringFixed(2))
		assert.Equal(t, "J1", res.CorrelationID)
		assert.Equal(t, "USD", res.Currency)
		require.NotNil(t, res.Reference)
		assert.Equal(t, "pay_1", *res.Reference)
		assert.Nil(t, res.ErrorMessage)
		assert.True(t, res.IsMock)
	})

	t.Run("failure with reason", func(t *testing.T) {
		res := NormalizePayment(events.PaymentFields{
			OrderID:     "O1",
			JobID:       "J1",
			Result:      enums.GatewayResultFailed,
			ErrorReason: strPtr("card declined"),
		})
		assert.Equal(t, enums.PaymentResultFailure, res.Status)
		require.NotNil(t, res.ErrorMessage)
		assert.Equal(t, "card declined", *res.ErrorMessage)
		assert.Nil(t, res.Reference)
	})

	t.Run("failure with code only", func(t *testing.T) {
		res := NormalizePayment(events.PaymentFields{Result: enums.GatewayResultFailed, ErrorCode: strPtr("BAD_REQUEST_ERROR")})
		require.NotNil(t, res.ErrorMessage)
		assert.Equal(t, "payment failed: BAD_REQUEST_ERROR", *res.ErrorMessage)
	})

	t.Run("dismissed", func(t *testing.T) {
		res := NormalizePayment(events.PaymentFields{Result: enums.GatewayResultDismissed})
		assert.Equal(t, enums.PaymentResultCancelled, res.Status)
		require.NotNil(t, res.ErrorMessage)
	})
}

func TestPaymentResultJSONAmount(t *testing.T) {
	res := NormalizePayment(events.PaymentFields{OrderID: "O1", JobID: "J1", Result: enums.GatewayResultSucceeded, AmountMinor: 50000})
	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":500.00`)
	assert.Contains(t, string(raw), `"status":"success"`)
}
